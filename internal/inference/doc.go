// Package inference wraps the inpainting model behind a Session that loads
// the checkpoint once and serializes every inference call.
//
// The model itself runs in a separate inference server reached through
// HTTPBackend. MaskPreprocessor builds the model's input tensor from an image
// and a per-watermark mask, and ToImage converts the model output back into
// an 8-bit image.
package inference

// Package pipeline removes watermarks from images and short video clips.
//
// Image runs one picture through preprocess, the shared model session and
// postprocess, then writes the result atomically. Video probes the clip,
// enforces the duration cap before any inference, restores every frame
// (falling back to the original pixels when a frame fails), reassembles
// the sequence at the source rate with the source audio, and reports
// progress to a progress.Store.
package pipeline

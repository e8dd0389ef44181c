package inference

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrUnsupported is returned when an image cannot be prepared for the model:
// unknown watermark type, no matching mask, or a mismatched aspect ratio.
var ErrUnsupported = errors.New("unsupported image geometry")

// Preprocessor turns a source image into the model's input tensor.
type Preprocessor interface {
	Preprocess(img image.Image, watermarkType string) (Tensor, error)
}

const (
	gridSize          = 8
	aspectTolerance   = 0.02
	landscapeMaskName = "landscape.png"
	portraitMaskName  = "portrait.png"
)

var watermarkTypePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// MaskPreprocessor pairs each image with a per-watermark mask stored at
// <dir>/<type>/{landscape,portrait}.png and lays image and mask side by side.
type MaskPreprocessor struct {
	dir string

	mu    sync.Mutex
	masks map[string]image.Image
}

// NewMaskPreprocessor returns a preprocessor reading masks from dir.
func NewMaskPreprocessor(dir string) *MaskPreprocessor {
	return &MaskPreprocessor{dir: dir, masks: make(map[string]image.Image)}
}

// Preprocess builds a [1, H, 2W, 3] tensor in BGR order scaled to [-1, 1].
func (p *MaskPreprocessor) Preprocess(img image.Image, watermarkType string) (Tensor, error) {
	if img == nil {
		return Tensor{}, fmt.Errorf("%w: no image", ErrUnsupported)
	}
	bounds := img.Bounds()
	if bounds.Dx() < gridSize || bounds.Dy() < gridSize {
		return Tensor{}, fmt.Errorf("%w: %dx%d is smaller than %dpx", ErrUnsupported, bounds.Dx(), bounds.Dy(), gridSize)
	}

	mask, err := p.mask(watermarkType, bounds.Dx() >= bounds.Dy())
	if err != nil {
		return Tensor{}, err
	}
	mb := mask.Bounds()

	imageRatio := float64(bounds.Dx()) / float64(bounds.Dy())
	maskRatio := float64(mb.Dx()) / float64(mb.Dy())
	if math.Abs(imageRatio-maskRatio)/maskRatio > aspectTolerance {
		return Tensor{}, fmt.Errorf("%w: aspect %.3f does not match %s mask aspect %.3f", ErrUnsupported, imageRatio, watermarkType, maskRatio)
	}

	width := mb.Dx() / gridSize * gridSize
	height := mb.Dy() / gridSize * gridSize
	if width == 0 || height == 0 {
		return Tensor{}, fmt.Errorf("%w: mask for %s is smaller than %dpx", ErrUnsupported, watermarkType, gridSize)
	}

	resized := imaging.Resize(img, mb.Dx(), mb.Dy(), imaging.Lanczos)
	resized = imaging.Crop(resized, image.Rect(0, 0, width, height))
	maskCropped := imaging.Crop(mask, image.Rect(0, 0, width, height))

	tensor := NewTensor(1, height, width*2, 3)
	fill(tensor.Data, resized, width*2, 0)
	fill(tensor.Data, maskCropped, width*2, width)
	return tensor, nil
}

// fill writes src into dst rows of rowWidth pixels starting at column offset.
func fill(dst []float32, src *image.NRGBA, rowWidth, offset int) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			o := (y*rowWidth + offset + x) * 3
			dst[o] = normalize(src.Pix[i+2])
			dst[o+1] = normalize(src.Pix[i+1])
			dst[o+2] = normalize(src.Pix[i])
		}
	}
}

func normalize(v uint8) float32 {
	return float32(v)/127.5 - 1
}

func (p *MaskPreprocessor) mask(watermarkType string, landscape bool) (image.Image, error) {
	if !watermarkTypePattern.MatchString(watermarkType) {
		return nil, fmt.Errorf("%w: watermark type %q", ErrUnsupported, watermarkType)
	}
	name := portraitMaskName
	if landscape {
		name = landscapeMaskName
	}
	path := filepath.Join(p.dir, watermarkType, name)

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.masks[path]; ok {
		return cached, nil
	}
	mask, err := imaging.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no %s mask for watermark type %q", ErrUnsupported, name, watermarkType)
	}
	if err != nil {
		return nil, fmt.Errorf("load mask %s: %w", path, err)
	}
	p.masks[path] = mask
	return mask, nil
}

// WatermarkTypes lists the mask directories available under dir.
func WatermarkTypes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var types []string
	for _, entry := range entries {
		if entry.IsDir() && watermarkTypePattern.MatchString(entry.Name()) {
			types = append(types, entry.Name())
		}
	}
	return types, nil
}

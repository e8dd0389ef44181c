package inference

import (
	"fmt"
	"image"
	"math"
)

// ToImage converts a [1, H, W, 3] model output in [-1, 1] into an 8-bit
// image. Values are denormalised with (x+1)*127.5, the channel order is
// reversed (BGR to RGB) and results saturate to [0, 255].
func ToImage(t Tensor) (*image.NRGBA, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(t.Shape) != 4 || t.Shape[0] != 1 || t.Shape[3] != 3 {
		return nil, fmt.Errorf("output tensor shape %v is not [1 H W 3]", t.Shape)
	}
	height, width := t.Shape[1], t.Shape[2]
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src := (y*width + x) * 3
			dst := img.PixOffset(x, y)
			img.Pix[dst] = saturate(t.Data[src+2])
			img.Pix[dst+1] = saturate(t.Data[src+1])
			img.Pix[dst+2] = saturate(t.Data[src])
			img.Pix[dst+3] = 255
		}
	}
	return img, nil
}

func saturate(v float32) uint8 {
	scaled := (float64(v) + 1) * 127.5
	switch {
	case math.IsNaN(scaled) || scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return uint8(scaled)
	}
}

package pipeline

import (
	"context"
	"errors"
	"image"

	"unmark/internal/inference"
	"unmark/internal/services"
)

// Inferer runs the inpainting model. *inference.Session satisfies it.
type Inferer interface {
	Infer(ctx context.Context, in inference.Tensor) (inference.Tensor, error)
}

// restorer carries one image through preprocess, inference and postprocess.
type restorer struct {
	model Inferer
	pre   inference.Preprocessor
}

func (r restorer) restore(ctx context.Context, img image.Image, watermarkType string) (*image.NRGBA, error) {
	in, err := r.pre.Preprocess(img, watermarkType)
	if err != nil {
		return nil, services.Wrap(services.ErrPreprocess, "preprocess", "prepare tensor", "watermark type "+watermarkType, err)
	}
	if in.Empty() {
		return nil, services.Wrap(services.ErrPreprocess, "preprocess", "prepare tensor", "empty tensor", inference.ErrUnsupported)
	}

	out, err := r.model.Infer(ctx, in)
	if err != nil {
		if errors.Is(err, services.ErrInference) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrInference, "inference", "infer", "", err)
	}

	restored, err := inference.ToImage(out)
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "postprocess", "decode output", "", err)
	}
	return restored, nil
}

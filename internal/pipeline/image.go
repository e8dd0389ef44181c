package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"unmark/internal/fileutil"
	"unmark/internal/inference"
	"unmark/internal/logging"
	"unmark/internal/services"
)

// Image removes the watermark from a single still image.
type Image struct {
	restorer
	logger *slog.Logger
}

// NewImage wires an image pipeline to a shared model and preprocessor.
func NewImage(model Inferer, pre inference.Preprocessor, logger *slog.Logger) *Image {
	return &Image{
		restorer: restorer{model: model, pre: pre},
		logger:   logging.NewComponentLogger(logger, "image-pipeline"),
	}
}

// Process restores inputPath into outputPath and reports success. Every
// failure, including a panic, is logged and reported as false; no file is
// left at outputPath unless the write completed.
func (p *Image) Process(ctx context.Context, inputPath, outputPath, watermarkType string) bool {
	logger := logging.WithContext(ctx, p.logger)
	start := time.Now()

	if err := p.Run(ctx, inputPath, outputPath, watermarkType); err != nil {
		details := services.Details(err)
		logging.ErrorWithContext(logger, "image processing failed", "image_failed",
			logging.String("input", inputPath),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.Error(err),
		)
		return false
	}

	logger.Info("image processed",
		logging.String(logging.FieldEventType, "image_completed"),
		logging.String("output", outputPath),
		logging.Duration("elapsed", time.Since(start)),
	)
	return true
}

// Run is Process with the classified error returned instead of logged.
func (p *Image) Run(ctx context.Context, inputPath, outputPath, watermarkType string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image pipeline panic: %v", r)
		}
	}()

	src, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrValidation, "loading", "decode image", inputPath, err)
	}

	restored, err := p.restore(ctx, src, watermarkType)
	if err != nil {
		return err
	}

	err = fileutil.WriteAtomic(outputPath, func(tmp string) error {
		return imaging.Save(restored, tmp)
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "saving", "encode image", outputPath, err)
	}
	return nil
}

package pipeline

import (
	"context"

	"unmark/internal/logging"
	"unmark/internal/media/ffprobe"
	"unmark/internal/services"
)

// Frame-rate sources recorded in Timing.Source.
const (
	RateFromContainer = "container"
	RateFromDecoder   = "decoder"
	RateFromDefault   = "default"
)

// resolveTiming reads duration and frame rate from the container. When
// either is missing it falls back to the decoder rate and a frame count,
// and finally to the configured default rate, which may not match the
// source.
func (v *Video) resolveTiming(ctx context.Context, inputPath string, probe ffprobe.Result) (Timing, error) {
	stream, _ := probe.VideoStream()
	timing := Timing{
		FrameRate: stream.FrameRate(),
		Duration:  probe.DurationSeconds(),
		Frames:    stream.FrameCount(),
		Source:    RateFromContainer,
	}
	if timing.FrameRate > 0 && timing.Duration > 0 {
		return timing, nil
	}

	logger := logging.WithContext(ctx, v.logger)
	if timing.FrameRate <= 0 {
		timing.FrameRate = stream.DecoderFrameRate()
		timing.Source = RateFromDecoder
	}
	if timing.Frames <= 0 {
		counted, err := v.tool.CountFrames(ctx, inputPath)
		if err != nil {
			logging.WarnWithContext(logger, "frame count failed", "frame_count_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "duration may be unknown"),
				logging.String(logging.FieldErrorHint, "verify the upload is a readable video container"),
			)
		}
		timing.Frames = counted
	}
	if timing.FrameRate <= 0 {
		timing.FrameRate = v.opts.DefaultFPS
		timing.Source = RateFromDefault
		logging.WarnWithContext(logger, "frame rate unavailable; using default", "fps_default",
			logging.Float64("fps", timing.FrameRate),
			logging.String(logging.FieldImpact, "output playback speed may differ from the source"),
			logging.String(logging.FieldErrorHint, "remux the source so it carries frame rate metadata"),
		)
	}
	if timing.Duration <= 0 && timing.Frames > 0 {
		timing.Duration = float64(timing.Frames) / timing.FrameRate
	}
	if timing.Duration <= 0 {
		return Timing{}, services.Wrap(services.ErrVideoOpen, StageProbing, "resolve duration", "no duration or frames in container", nil)
	}
	return timing, nil
}

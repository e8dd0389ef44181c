package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"unmark/internal/fileutil"
	"unmark/internal/inference"
	"unmark/internal/logging"
	"unmark/internal/media/ffmpeg"
	"unmark/internal/media/ffprobe"
	"unmark/internal/progress"
	"unmark/internal/services"
	"unmark/internal/services/drapto"
)

// Video pipeline stages, used as the stage log field.
const (
	StageOpening      = "opening"
	StageProbing      = "probing"
	StageInferring    = "extracting+inferring"
	StageReassembling = "reassembling"
)

// Progress checkpoints written by the video pipeline.
const (
	frameProgressSpan = 0.8
	encodeProgress    = 0.9
)

// MaxVideoSeconds is the hard duration ceiling. MaxDurationSeconds may lower
// it but never raise it.
const MaxVideoSeconds = 60

// VideoOptions configures a Video pipeline.
type VideoOptions struct {
	ScratchDir         string
	MaxDurationSeconds float64
	DefaultFPS         float64
	// Encoder, when set, re-encodes the assembled clip before delivery.
	Encoder drapto.Encoder
}

// Video removes the watermark from every frame of a short clip.
type Video struct {
	restorer
	tool   VideoTool
	store  progress.Store
	opts   VideoOptions
	logger *slog.Logger
}

// NewVideo wires a video pipeline. The model is shared with the image
// pipeline; the session gate is taken once per frame.
func NewVideo(model Inferer, pre inference.Preprocessor, tool VideoTool, store progress.Store, opts VideoOptions, logger *slog.Logger) *Video {
	if opts.MaxDurationSeconds <= 0 || opts.MaxDurationSeconds > MaxVideoSeconds {
		opts.MaxDurationSeconds = MaxVideoSeconds
	}
	if opts.DefaultFPS <= 0 {
		opts.DefaultFPS = 30
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	return &Video{
		restorer: restorer{model: model, pre: pre},
		tool:     tool,
		store:    store,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "video-pipeline"),
	}
}

// Timing is the resolved playback geometry of a clip.
type Timing struct {
	FrameRate float64
	Duration  float64
	Frames    int
	// Source names where FrameRate came from: container, decoder or default.
	Source string
}

// Process runs the full pipeline for taskID and reports success. Progress
// moves through [0, 0.8] during frames, 0.9 before encoding, 1.0 on
// success and -1 on failure. The scratch directory is always removed.
func (v *Video) Process(ctx context.Context, inputPath, outputPath, watermarkType, taskID string) bool {
	ctx = services.WithTaskID(ctx, taskID)
	logger := logging.WithContext(ctx, v.logger)
	reporter := progress.NewReporter(v.store, taskID)
	start := time.Now()

	err := v.Run(ctx, inputPath, outputPath, watermarkType, reporter)
	// terminal writes must land even when shutdown cancelled ctx
	final := context.WithoutCancel(ctx)
	if err != nil {
		details := services.Details(err)
		logging.ErrorWithContext(logger, "video processing failed", "video_failed",
			logging.String("input", inputPath),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.Error(err),
		)
		if werr := reporter.Fail(final); werr != nil {
			v.progressWriteFailed(logger, werr)
		}
		return false
	}

	if werr := reporter.Complete(final); werr != nil {
		v.progressWriteFailed(logger, werr)
	}
	logger.Info("video processed",
		logging.String(logging.FieldEventType, "video_completed"),
		logging.String("output", outputPath),
		logging.Duration("elapsed", time.Since(start)),
	)
	return true
}

// Run executes the state machine and returns the classified error of the
// first unrecoverable failure. Terminal progress is left to the caller.
func (v *Video) Run(ctx context.Context, inputPath, outputPath, watermarkType string, reporter *progress.Reporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("video pipeline panic: %v", r)
		}
	}()

	openCtx := services.WithStage(ctx, StageOpening)
	probe, err := v.tool.Inspect(openCtx, inputPath)
	if err != nil {
		return services.Wrap(services.ErrVideoOpen, StageOpening, "probe container", inputPath, err)
	}
	if probe.VideoStreamCount() == 0 {
		return services.Wrap(services.ErrVideoOpen, StageOpening, "probe container", "no video stream", nil)
	}

	probeCtx := services.WithStage(ctx, StageProbing)
	timing, err := v.resolveTiming(probeCtx, inputPath, probe)
	if err != nil {
		return err
	}
	if timing.Duration > v.opts.MaxDurationSeconds {
		return services.Wrap(services.ErrVideoTooLong, StageProbing, "check duration",
			fmt.Sprintf("duration %.1fs exceeds %.0fs", timing.Duration, v.opts.MaxDurationSeconds), nil)
	}
	logging.WithContext(probeCtx, v.logger).Info("video probed",
		logging.Float64("duration_seconds", timing.Duration),
		logging.Float64("fps", timing.FrameRate),
		logging.String("fps_source", timing.Source),
		logging.Bool("has_audio", probe.AudioStreamCount() > 0),
		logging.Int64("size_bytes", probe.SizeBytes()),
	)

	if err := os.MkdirAll(v.opts.ScratchDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, StageInferring, "create scratch dir", v.opts.ScratchDir, err)
	}
	scratch, err := os.MkdirTemp(v.opts.ScratchDir, scratchPrefix(ctx))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, StageInferring, "create scratch dir", v.opts.ScratchDir, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logging.WarnWithContext(v.logger, "scratch cleanup failed", "scratch_cleanup_failed",
				logging.String("path", scratch),
				logging.Error(rmErr),
				logging.String(logging.FieldImpact, "stale frames remain until the retention sweep"),
			)
		}
	}()

	restoredDir := filepath.Join(scratch, "restored")
	if err := v.processFrames(services.WithStage(ctx, StageInferring), inputPath, scratch, restoredDir, watermarkType, reporter); err != nil {
		return err
	}

	return v.reassemble(services.WithStage(ctx, StageReassembling), inputPath, outputPath, scratch, restoredDir, timing, probe, reporter)
}

func (v *Video) processFrames(ctx context.Context, inputPath, scratch, restoredDir, watermarkType string, reporter *progress.Reporter) error {
	logger := logging.WithContext(ctx, v.logger)

	frames, err := v.tool.ExtractFrames(ctx, inputPath, filepath.Join(scratch, "source"))
	if err != nil {
		return services.Wrap(services.ErrVideoOpen, StageInferring, "extract frames", inputPath, err)
	}
	if err := os.MkdirAll(restoredDir, 0o755); err != nil {
		return services.Wrap(services.ErrReassembly, StageInferring, "create frame dir", restoredDir, err)
	}

	sampler := logging.NewProgressSampler(10)
	fallbacks := 0
	total := len(frames)
	for i, src := range frames {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("video cancelled at frame %d: %w", i, err)
		}
		dst := ffmpeg.FramePath(restoredDir, i)
		if ferr := v.processFrame(ctx, src, dst, watermarkType, i); ferr != nil {
			if !services.Recoverable(ferr) {
				return ferr
			}
			fallbacks++
			logging.WarnWithContext(logger, "frame restore failed; keeping original", "frame_fallback",
				logging.Int("frame", i),
				logging.String(logging.FieldErrorKind, services.Kind(ferr)),
				logging.Error(ferr),
				logging.String(logging.FieldImpact, "watermark remains visible on this frame"),
				logging.String(logging.FieldErrorHint, services.Hint(ferr)),
			)
			if cerr := fileutil.CopyFile(src, dst); cerr != nil {
				return services.Wrap(services.ErrReassembly, StageInferring, "copy original frame", src, cerr)
			}
		}

		fraction := frameProgressSpan * float64(i+1) / float64(total)
		if werr := reporter.Report(ctx, fraction); werr != nil {
			v.progressWriteFailed(logger, werr)
		}
		if sampler.ShouldLog(float64(i+1)/float64(total), StageInferring) {
			logger.Info("frames progress",
				logging.Int("done", i+1),
				logging.Int("total", total),
				logging.Int("fallbacks", fallbacks),
			)
		}
	}
	return nil
}

// processFrame restores one frame. Every failure, including a panic, is
// reported as a frame error so the caller can substitute the original.
func (v *Video) processFrame(ctx context.Context, src, dst, watermarkType string, index int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrFrame, StageInferring, "restore frame", fmt.Sprintf("frame %d panic: %v", index, r), nil)
		}
	}()
	wrap := func(op string, cause error) error {
		return services.Wrap(services.ErrFrame, StageInferring, op, fmt.Sprintf("frame %d", index), cause)
	}

	img, err := imaging.Open(src)
	if err != nil {
		return wrap("decode frame", err)
	}
	restored, err := v.restore(ctx, img, watermarkType)
	if err != nil {
		return wrap("restore frame", err)
	}
	bounds := img.Bounds()
	if restored.Bounds().Dx() != bounds.Dx() || restored.Bounds().Dy() != bounds.Dy() {
		restored = imaging.Resize(restored, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
	}
	if err := imaging.Save(restored, dst); err != nil {
		_ = os.Remove(dst)
		return wrap("encode frame", err)
	}
	return nil
}

func (v *Video) reassemble(ctx context.Context, inputPath, outputPath, scratch, restoredDir string, timing Timing, probe ffprobe.Result, reporter *progress.Reporter) error {
	logger := logging.WithContext(ctx, v.logger)
	if werr := reporter.Report(ctx, encodeProgress); werr != nil {
		v.progressWriteFailed(logger, werr)
	}

	assembled := filepath.Join(scratch, "assembled.mp4")
	req := ffmpeg.AssembleRequest{FramesDir: restoredDir, FrameRate: timing.FrameRate, Output: assembled}
	if audio, ok := probe.AudioStream(); ok {
		req.AudioSource = inputPath
		req.AudioCodec = audio.CodecName
	}
	if err := v.tool.Assemble(ctx, req); err != nil {
		return services.Wrap(services.ErrReassembly, StageReassembling, "encode frames", "", err)
	}

	deliver := assembled
	if v.opts.Encoder != nil {
		encoded, err := v.opts.Encoder.Encode(ctx, assembled, filepath.Join(scratch, "encoded"))
		if err != nil {
			return services.Wrap(services.ErrReassembly, StageReassembling, "drapto encode", "", err)
		}
		deliver = encoded
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrReassembly, StageReassembling, "create output dir", outputPath, err)
	}
	if err := fileutil.MoveFile(deliver, outputPath); err != nil {
		return services.Wrap(services.ErrReassembly, StageReassembling, "publish output", outputPath, err)
	}
	return nil
}

func (v *Video) progressWriteFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "progress write failed", "progress_write_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "clients may see stale progress"),
		logging.String(logging.FieldErrorHint, "check the progress store backend"),
	)
}

func scratchPrefix(ctx context.Context) string {
	if id, ok := services.TaskIDFromContext(ctx); ok {
		return id + "-"
	}
	return "video-"
}

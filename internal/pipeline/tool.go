package pipeline

import (
	"context"

	"unmark/internal/media/ffmpeg"
	"unmark/internal/media/ffprobe"
)

// VideoTool is the media toolchain the video pipeline drives.
type VideoTool interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
	CountFrames(ctx context.Context, path string) (int, error)
	ExtractFrames(ctx context.Context, input, dir string) ([]string, error)
	Assemble(ctx context.Context, req ffmpeg.AssembleRequest) error
}

// MediaTool is the ffprobe/ffmpeg backed VideoTool.
type MediaTool struct {
	probe *ffprobe.Prober
	codec *ffmpeg.Tool
}

// NewMediaTool builds a MediaTool for the given binaries. Empty names
// resolve from PATH.
func NewMediaTool(ffmpegBinary, ffprobeBinary string) *MediaTool {
	return &MediaTool{probe: ffprobe.New(ffprobeBinary), codec: ffmpeg.New(ffmpegBinary)}
}

func (m *MediaTool) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return m.probe.Inspect(ctx, path)
}

func (m *MediaTool) CountFrames(ctx context.Context, path string) (int, error) {
	return m.probe.CountFrames(ctx, path)
}

func (m *MediaTool) ExtractFrames(ctx context.Context, input, dir string) ([]string, error) {
	return m.codec.ExtractFrames(ctx, input, dir)
}

func (m *MediaTool) Assemble(ctx context.Context, req ffmpeg.AssembleRequest) error {
	return m.codec.Assemble(ctx, req)
}

var _ VideoTool = (*MediaTool)(nil)

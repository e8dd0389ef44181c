package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FramePattern names extracted frames. Numbering starts at zero.
const FramePattern = "frame_%06d.png"

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tool splits videos into frame images and reassembles them.
type Tool struct {
	binary string
	run    Runner
}

// New returns a Tool for binary, defaulting to "ffmpeg" on PATH.
func New(binary string) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Tool{binary: binary, run: execRunner}
}

// WithRunner sets a custom command runner (for testing).
func (t *Tool) WithRunner(run Runner) *Tool {
	t.run = run
	return t
}

// FramePath returns the path of frame index inside dir.
func FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf(FramePattern, index))
}

// ExtractFrames decodes every frame of input into dir as PNG files and
// returns their paths in presentation order.
func (t *Tool) ExtractFrames(ctx context.Context, input, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	args := []string{
		"-hide_banner", "-v", "error", "-nostdin", "-y",
		"-i", input,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-start_number", "0",
		filepath.Join(dir, FramePattern),
	}
	if _, err := t.run(ctx, t.binary, args...); err != nil {
		return nil, fmt.Errorf("extract frames: %w", err)
	}
	frames, err := ListFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.New("extract frames: decoder produced no frames")
	}
	return frames, nil
}

// AssembleRequest describes a frame sequence to encode.
type AssembleRequest struct {
	FramesDir string
	FrameRate float64
	// AudioSource supplies the audio track, if it has one. AudioCodec is the
	// source codec name from ffprobe; codecs the mp4 muxer rejects are
	// transcoded to AAC, everything else is copied unmodified.
	AudioSource string
	AudioCodec  string
	Output      string
}

var mp4AudioCodecs = map[string]struct{}{
	"aac": {}, "mp3": {}, "opus": {}, "alac": {}, "ac3": {}, "eac3": {},
}

// CopiesAudio reports whether codec can be stream-copied into an mp4.
func CopiesAudio(codec string) bool {
	_, ok := mp4AudioCodecs[strings.ToLower(strings.TrimSpace(codec))]
	return ok
}

// Assemble encodes the frame sequence in FramesDir to Output as H.264.
func (t *Tool) Assemble(ctx context.Context, req AssembleRequest) error {
	if req.FrameRate <= 0 {
		return fmt.Errorf("assemble: invalid frame rate %v", req.FrameRate)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if _, err := t.run(ctx, t.binary, AssembleArgs(req)...); err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	info, err := os.Stat(req.Output)
	if err != nil {
		return fmt.Errorf("assemble: output missing: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("assemble: output is empty")
	}
	return nil
}

// AssembleArgs builds the ffmpeg argument list for req.
func AssembleArgs(req AssembleRequest) []string {
	args := []string{
		"-hide_banner", "-v", "error", "-nostdin", "-y",
		"-framerate", strconv.FormatFloat(req.FrameRate, 'f', -1, 64),
		"-start_number", "0",
		"-i", filepath.Join(req.FramesDir, FramePattern),
	}
	if req.AudioSource != "" {
		args = append(args, "-i", req.AudioSource, "-map", "0:v:0", "-map", "1:a:0?")
		if CopiesAudio(req.AudioCodec) {
			args = append(args, "-c:a", "copy")
		} else {
			args = append(args, "-c:a", "aac", "-b:a", "192k")
		}
	}
	args = append(args,
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		req.Output,
	)
	return args
}

// ListFrames returns the extracted frame files in dir sorted by index.
func ListFrames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

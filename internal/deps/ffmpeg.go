package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckMediaTools reports the ffmpeg and ffprobe binaries the video pipeline
// executes.
//
// Static ffmpeg builds usually ship ffprobe in the same directory, so a
// configured ffprobe that cannot be resolved falls back to a sibling of the
// resolved ffmpeg before giving up.
func CheckMediaTools(ffmpegBinary, ffprobeBinary string) []Status {
	ffmpeg := Check(Requirement{
		Name:        "FFmpeg",
		Command:     defaultCommand(ffmpegBinary, "ffmpeg"),
		Description: "Required for frame extraction and reassembly",
	})
	ffprobe := Check(Requirement{
		Name:        "FFprobe",
		Command:     defaultCommand(ffprobeBinary, "ffprobe"),
		Description: "Required for video inspection",
	})

	if !ffprobe.Available && ffmpeg.Available {
		if candidate, ok := siblingCandidate(ffmpeg.Command, "ffprobe"); ok {
			if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
				ffprobe.Command = candidate
				ffprobe.Available = true
				ffprobe.Detail = ""
			}
		}
	}
	return []Status{ffmpeg, ffprobe}
}

// ResolveFFprobe returns the ffprobe command to execute, preferring the
// configured binary and falling back to a sibling of ffmpeg.
func ResolveFFprobe(ffmpegBinary, ffprobeBinary string) string {
	statuses := CheckMediaTools(ffmpegBinary, ffprobeBinary)
	if statuses[1].Available {
		return statuses[1].Command
	}
	return defaultCommand(ffprobeBinary, "ffprobe")
}

func defaultCommand(configured, fallback string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return fallback
}

func siblingCandidate(binaryPath, name string) (string, bool) {
	if binaryPath == "" {
		return "", false
	}
	if resolved, err := exec.LookPath(binaryPath); err == nil {
		binaryPath = resolved
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(binaryPath), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// Summary formats a status for single-line display.
func (s Status) Summary() string {
	switch {
	case s.Available:
		return fmt.Sprintf("%s: %s", s.Name, s.Command)
	case s.Optional:
		return fmt.Sprintf("%s: optional, %s", s.Name, s.Detail)
	default:
		return fmt.Sprintf("%s: %s", s.Name, s.Detail)
	}
}

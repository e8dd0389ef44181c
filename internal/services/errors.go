package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrPreprocess    = errors.New("preprocess error")
	ErrInference     = errors.New("inference error")
	ErrVideoOpen     = errors.New("video open error")
	ErrVideoTooLong  = errors.New("video too long")
	ErrFrame         = errors.New("frame error")
	ErrReassembly    = errors.New("reassembly error")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// markers is ordered so the most specific pipeline failure wins when an
// error chain carries more than one.
var markers = []struct {
	err  error
	kind string
}{
	{ErrVideoTooLong, "video_too_long"},
	{ErrVideoOpen, "video_open"},
	{ErrFrame, "frame"},
	{ErrReassembly, "reassembly"},
	{ErrPreprocess, "preprocess"},
	{ErrInference, "inference"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrExternalTool, "external_tool"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a stable snake_case label for the taxonomy marker carried by err.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range markers {
		if errors.Is(err, m.err) {
			return m.kind
		}
	}
	return "unknown"
}

// Recoverable reports whether err is local to one frame and the task may continue.
func Recoverable(err error) bool {
	return errors.Is(err, ErrFrame)
}

// Hint returns operator guidance for an error kind, used as the error_hint log field.
func Hint(err error) string {
	switch Kind(err) {
	case "video_too_long":
		return "trim the clip below the configured duration cap"
	case "video_open":
		return "verify the upload is a readable video container"
	case "frame":
		return "frame kept as original; check the model backend and mask for this aspect ratio"
	case "preprocess":
		return "check the watermark type and that a mask exists for this aspect ratio"
	case "inference":
		return "check the model backend is reachable and healthy"
	case "reassembly":
		return "inspect ffmpeg output in the debug log"
	case "external_tool":
		return "verify ffmpeg and ffprobe are installed"
	case "configuration":
		return "run `unmark config validate`"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// ErrorDetails summarises a classified error for logs and task rows.
type ErrorDetails struct {
	Kind    string
	Hint    string
	Message string
}

// Details classifies err. The zero value is returned for a nil error.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	return ErrorDetails{Kind: Kind(err), Hint: Hint(err), Message: err.Error()}
}

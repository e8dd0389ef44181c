package logging

import (
	"context"
	"log/slog"

	"unmark/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent = "component"
	FieldTaskID    = "task_id"
	FieldStage     = "stage"
	FieldRequestID = "request_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorKind carries the taxonomy marker of a wrapped error.
	FieldErrorKind = "error_kind"
)

// ContextFields returns the task, stage and request attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, f := range []struct {
		key   string
		value func(context.Context) (string, bool)
	}{
		{FieldTaskID, services.TaskIDFromContext},
		{FieldStage, services.StageFromContext},
		{FieldRequestID, services.RequestIDFromContext},
	} {
		if v, ok := f.value(ctx); ok {
			fields = append(fields, slog.String(f.key, v))
		}
	}
	return fields
}

// WithContext returns logger with the fields of ContextFields attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

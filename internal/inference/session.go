package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"unmark/internal/logging"
	"unmark/internal/services"
)

// Inpainter reconstructs the masked region of a model input tensor.
type Inpainter interface {
	Infer(ctx context.Context, in Tensor) (Tensor, error)
}

// LoadReport describes which checkpoint variables the backend restored.
type LoadReport struct {
	Loaded  []string `json:"loaded"`
	Missing []string `json:"missing"`
}

// Backend is an inference engine that must load a checkpoint before use.
type Backend interface {
	Inpainter
	Load(ctx context.Context, checkpointDir string) (LoadReport, error)
}

// Session owns the single loaded inference resource. Infer calls are
// serialized through one mutex; the backend never sees two calls at once.
type Session struct {
	mu      sync.Mutex
	backend Inpainter
	report  LoadReport
	logger  *slog.Logger
	calls   atomic.Int64
}

// Load restores checkpointDir into backend and returns a ready Session.
// Missing variables are logged and tolerated; a backend error or a
// checkpoint with no usable variables fails.
func Load(ctx context.Context, backend Backend, checkpointDir string, logger *slog.Logger) (*Session, error) {
	logger = logging.NewComponentLogger(logger, "model-session")
	if backend == nil {
		return nil, services.Wrap(services.ErrConfiguration, "model", "load", "no inference backend configured", nil)
	}

	report, err := backend.Load(ctx, checkpointDir)
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "model", "load", "load checkpoint "+checkpointDir, err)
	}
	for _, name := range report.Missing {
		logging.WarnWithContext(logger, "checkpoint variable not loaded", "checkpoint_variable_missing",
			logging.String("variable", name),
			logging.String(logging.FieldImpact, "model runs with its initial value for this variable"),
			logging.String(logging.FieldErrorHint, "verify the checkpoint matches the model version"),
		)
	}
	if len(report.Loaded) == 0 {
		return nil, services.Wrap(services.ErrInference, "model", "load",
			fmt.Sprintf("checkpoint %s restored no variables (%d missing)", checkpointDir, len(report.Missing)), nil)
	}

	logger.Info("model loaded",
		logging.String("checkpoint_dir", checkpointDir),
		logging.Int("variables_loaded", len(report.Loaded)),
		logging.Int("variables_missing", len(report.Missing)),
	)
	return &Session{backend: backend, report: report, logger: logger}, nil
}

// NewSession wraps an already-initialised inpainter.
func NewSession(inpainter Inpainter, logger *slog.Logger) *Session {
	return &Session{backend: inpainter, logger: logging.NewComponentLogger(logger, "model-session")}
}

// Infer runs one inference while holding the session gate.
func (s *Session) Infer(ctx context.Context, in Tensor) (Tensor, error) {
	if err := in.Validate(); err != nil {
		return Tensor{}, services.Wrap(services.ErrInference, "inference", "validate input", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Tensor{}, services.Wrap(services.ErrInference, "inference", "infer", "cancelled before start", err)
	}
	s.calls.Add(1)
	out, err := s.backend.Infer(ctx, in)
	if err != nil {
		return Tensor{}, services.Wrap(services.ErrInference, "inference", "infer", "shape "+shapeString(in.Shape), err)
	}
	if err := out.Validate(); err != nil {
		return Tensor{}, services.Wrap(services.ErrInference, "inference", "validate output", "", err)
	}
	return out, nil
}

// Calls returns how many inferences the session has started.
func (s *Session) Calls() int64 {
	return s.calls.Load()
}

// Report returns the checkpoint load summary.
func (s *Session) Report() LoadReport {
	return s.report
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, dim := range shape {
		parts[i] = fmt.Sprint(dim)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

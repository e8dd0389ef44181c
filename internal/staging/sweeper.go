package staging

import (
	"context"
	"log/slog"
	"os"
	"time"

	"unmark/internal/logging"
	"unmark/internal/queue"
)

// TaskStore is the subset of queue.Store the sweeper prunes.
type TaskStore interface {
	FinishedBefore(ctx context.Context, cutoff time.Time) ([]*queue.Task, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// ProgressPruner deletes progress records kept outside the task database.
type ProgressPruner interface {
	Delete(ctx context.Context, taskID string) error
}

// Policy sets how long each kind of artefact is retained.
type Policy struct {
	OutputDir     string
	UploadDir     string
	ScratchDir    string
	OutputMaxAge  time.Duration
	ScratchMaxAge time.Duration
	Interval      time.Duration
}

// SweepResult summarises one retention pass.
type SweepResult struct {
	TasksPruned    int
	OutputsRemoved int
	StaleRemoved   int
	Errors         int
}

// Sweeper periodically deletes expired outputs, their task rows, stale
// scratch directories and abandoned uploads.
type Sweeper struct {
	store    TaskStore
	progress ProgressPruner
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper constructs a sweeper.
func NewSweeper(store TaskStore, policy Policy, logger *slog.Logger) *Sweeper {
	if policy.Interval <= 0 {
		policy.Interval = 30 * time.Minute
	}
	return &Sweeper{
		store:  store,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "retention"),
		now:    time.Now,
	}
}

// WithProgress makes the sweeper delete progress records of pruned tasks.
func (s *Sweeper) WithProgress(p ProgressPruner) *Sweeper {
	s.progress = p
	return s
}

// Run sweeps once immediately and then every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.policy.Interval)
	defer ticker.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one retention pass.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	if s.store != nil && s.policy.OutputMaxAge > 0 {
		expired, err := s.store.FinishedBefore(ctx, s.now().Add(-s.policy.OutputMaxAge))
		if err != nil {
			result.Errors++
			logging.WarnWithContext(s.logger, "query expired tasks failed", "retention_query_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "expired outputs kept until the next sweep"),
				logging.String(logging.FieldErrorHint, "check state database access"),
			)
		}
		for _, task := range expired {
			if task.OutputPath != "" {
				if err := os.Remove(task.OutputPath); err == nil {
					result.OutputsRemoved++
				} else if !os.IsNotExist(err) {
					result.Errors++
					continue
				}
			}
			if removed, err := s.store.Remove(ctx, task.ID); err != nil {
				result.Errors++
			} else if removed {
				result.TasksPruned++
			}
			if s.progress != nil {
				if err := s.progress.Delete(ctx, task.ID); err != nil {
					result.Errors++
				}
			}
		}
	}

	for _, dir := range []string{s.policy.ScratchDir, s.policy.UploadDir} {
		stale := CleanStale(ctx, dir, s.policy.ScratchMaxAge, s.logger)
		result.StaleRemoved += len(stale.Removed)
		result.Errors += len(stale.Errors)
	}
	// outputs whose task rows are already gone
	orphans := CleanStale(ctx, s.policy.OutputDir, s.policy.OutputMaxAge, s.logger)
	result.OutputsRemoved += len(orphans.Removed)
	result.Errors += len(orphans.Errors)

	if result.TasksPruned+result.OutputsRemoved+result.StaleRemoved+result.Errors > 0 {
		s.logger.Info("retention sweep finished",
			logging.String(logging.FieldEventType, "retention_sweep"),
			logging.Int("tasks_pruned", result.TasksPruned),
			logging.Int("outputs_removed", result.OutputsRemoved),
			logging.Int("stale_removed", result.StaleRemoved),
			logging.Int("errors", result.Errors),
		)
	}
	return result
}

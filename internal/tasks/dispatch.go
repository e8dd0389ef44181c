package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"unmark/internal/logging"
	"unmark/internal/progress"
	"unmark/internal/queue"
	"unmark/internal/services"
)

func (o *Orchestrator) dispatch(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.jobs:
			if ctx.Err() != nil {
				jobCtx := services.WithTaskID(context.WithoutCancel(ctx), job.task.ID)
				logger := logging.WithContext(jobCtx, o.logger)
				o.interrupt(jobCtx, logger, job.task)
				o.removeInput(logger, job.task.InputPath)
				return
			}
			o.wg.Add(1)
			go o.runVideo(ctx, job)
		}
	}
}

func (o *Orchestrator) runVideo(ctx context.Context, job videoJob) {
	defer o.wg.Done()
	task := job.task
	ctx = services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(ctx, o.logger)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "video job panicked", "video_panic",
				logging.String("panic", fmt.Sprint(r)),
			)
			o.finish(context.WithoutCancel(ctx), logger, task, false)
		}
		o.removeInput(logger, task.InputPath)
	}()

	if o.sem != nil {
		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-ctx.Done():
			o.interrupt(context.WithoutCancel(ctx), logger, task)
			return
		}
	}

	if err := o.store.SetStatus(ctx, task.ID, queue.StatusProcessing); err != nil {
		o.warnStore(logger, err)
	}
	o.writeProgress(ctx, logger, task.ID, 0, progress.StatusProcessing)

	started := time.Now()
	ok := o.videos.Process(ctx, task.InputPath, task.OutputPath, task.WatermarkType, task.ID)
	o.finish(context.WithoutCancel(ctx), logger, task, ok)
	o.notify(context.WithoutCancel(ctx), logger, task, ok, time.Since(started))
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, task *queue.Task, ok bool, elapsed time.Duration) {
	if o.opts.Notifier == nil {
		return
	}
	var err error
	if ok {
		err = o.opts.Notifier.NotifyVideoCompleted(ctx, task.ID, elapsed)
	} else {
		err = o.opts.Notifier.NotifyVideoFailed(ctx, task.ID, "processing failed")
	}
	if err != nil {
		logging.WarnWithContext(logger, "video notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no push notification for this task"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// finish records the terminal state of a task row and its progress.
func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, task *queue.Task, ok bool) {
	if ok {
		if err := o.store.SetStatus(ctx, task.ID, queue.StatusCompleted); err != nil {
			o.warnStore(logger, err)
		}
		o.writeProgress(ctx, logger, task.ID, 1.0, progress.StatusCompleted)
		return
	}
	msg := fmt.Sprintf("%s processing failed; see daemon log for task %s", task.Kind, task.ID)
	if err := o.store.MarkFailed(ctx, task.ID, "processing", msg); err != nil {
		o.warnStore(logger, err)
	}
	o.writeProgress(ctx, logger, task.ID, progress.FailedValue, progress.StatusFailed)
}

func (o *Orchestrator) interrupt(ctx context.Context, logger *slog.Logger, task *queue.Task) {
	if err := o.store.MarkFailed(ctx, task.ID, "interrupted", queue.InterruptedReason); err != nil {
		o.warnStore(logger, err)
	}
	o.writeProgress(ctx, logger, task.ID, progress.FailedValue, progress.StatusFailed)
}

// drainPending fails jobs that were admitted but never dispatched.
func (o *Orchestrator) drainPending() {
	for {
		select {
		case job := <-o.jobs:
			ctx := services.WithTaskID(context.Background(), job.task.ID)
			logger := logging.WithContext(ctx, o.logger)
			o.interrupt(ctx, logger, job.task)
			o.removeInput(logger, job.task.InputPath)
		default:
			return
		}
	}
}

func (o *Orchestrator) writeProgress(ctx context.Context, logger *slog.Logger, id string, value float64, status progress.Status) {
	if err := o.progress.Write(ctx, id, value, status); err != nil {
		o.warnProgress(logger, id, err)
	}
}

func (o *Orchestrator) removeInput(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.WarnWithContext(logger, "remove upload failed", "upload_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "upload remains on disk until removed manually"),
		)
	}
}

func (o *Orchestrator) warnProgress(logger *slog.Logger, id string, err error) {
	logging.WarnWithContext(logger, "progress write failed", "progress_write_failed",
		logging.String(logging.FieldTaskID, id),
		logging.Error(err),
		logging.String(logging.FieldImpact, "clients may see stale progress"),
		logging.String(logging.FieldErrorHint, "check the progress store backend"),
	)
}

func (o *Orchestrator) warnStore(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "task row update failed", "task_update_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "task listing may show a stale status"),
		logging.String(logging.FieldErrorHint, "check state database access"),
	)
}

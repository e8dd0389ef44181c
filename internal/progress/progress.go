package progress

import (
	"context"
	"time"
)

// Status is the lifecycle state reported alongside a progress value.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusNotFound is only produced by reads for ids with no record.
	StatusNotFound Status = "not_found"
)

// FailedValue is the progress sentinel written when a task fails.
const FailedValue = -1.0

// Record is the persisted view of one task's progress.
type Record struct {
	TaskID    string    `json:"task_id"`
	Progress  float64   `json:"progress"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether the record describes a finished task.
func (r Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// NotFound builds the record returned for unknown task ids.
func NotFound(taskID string) Record {
	return Record{TaskID: taskID, Progress: 0, Status: StatusNotFound, Timestamp: time.Now().UTC()}
}

// Store persists the latest progress per task. Writes overwrite; reads of an
// unknown id return NotFound(taskID) and a nil error.
type Store interface {
	Write(ctx context.Context, taskID string, value float64, status Status) error
	Read(ctx context.Context, taskID string) (Record, error)
}

// Reporter binds a Store to one task so pipeline code only supplies values.
// Write failures are returned to the caller; the pipeline logs and continues.
type Reporter struct {
	store  Store
	taskID string
}

// NewReporter returns a Reporter for taskID. A nil store yields a reporter
// that drops every update.
func NewReporter(store Store, taskID string) *Reporter {
	return &Reporter{store: store, taskID: taskID}
}

// Report writes value with the processing status.
func (r *Reporter) Report(ctx context.Context, value float64) error {
	return r.write(ctx, value, StatusProcessing)
}

// Complete writes 1.0 with the completed status.
func (r *Reporter) Complete(ctx context.Context) error {
	return r.write(ctx, 1.0, StatusCompleted)
}

// Fail writes the failure sentinel.
func (r *Reporter) Fail(ctx context.Context) error {
	return r.write(ctx, FailedValue, StatusFailed)
}

func (r *Reporter) write(ctx context.Context, value float64, status Status) error {
	if r == nil || r.store == nil || r.taskID == "" {
		return nil
	}
	return r.store.Write(ctx, r.taskID, value, status)
}

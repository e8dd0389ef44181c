package queue

import (
	"time"

	"unmark/internal/progress"
)

// Kind distinguishes image and video tasks.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Status reuses the progress lifecycle so task rows and progress records agree.
type Status = progress.Status

const (
	StatusQueued     = progress.StatusQueued
	StatusProcessing = progress.StatusProcessing
	StatusCompleted  = progress.StatusCompleted
	StatusFailed     = progress.StatusFailed
)

// InterruptedReason is recorded on tasks that were in flight when the daemon stopped.
const InterruptedReason = "daemon stopped before the task finished"

// Task is one admitted unit of work.
type Task struct {
	ID            string
	Kind          Kind
	Status        Status
	InputPath     string
	OutputPath    string
	WatermarkType string
	ErrorKind     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the task has finished.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(value) {
	case KindImage:
		return KindImage, true
	case KindVideo:
		return KindVideo, true
	default:
		return "", false
	}
}

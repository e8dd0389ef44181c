package api

import (
	"time"

	"unmark/internal/progress"
	"unmark/internal/queue"
)

// Route paths shared by the server and the client.
const (
	PathHealth        = "/health"
	PathRemove        = "/api/v1/remove-watermark"
	PathDownload      = "/api/v1/download/"
	PathRemoveVideo   = "/api/v1/remove-watermark-video"
	PathVideoProgress = "/api/v1/video-progress/"
	PathDownloadVideo = "/api/v1/download-video/"
	PathTasks         = "/api/v1/tasks"
	PathStatus        = "/api/v1/status"
)

// DownloadURL returns the relative download path for a task of kind.
func DownloadURL(kind queue.Kind, taskID string) string {
	if kind == queue.KindVideo {
		return PathDownloadVideo + taskID
	}
	return PathDownload + taskID
}

// ProgressURL returns the relative progress path for a video task.
func ProgressURL(taskID string) string {
	return PathVideoProgress + taskID
}

// FromTask converts a queue row. Failed tasks carry no download URL.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}
	out := Task{
		ID:            task.ID,
		Kind:          string(task.Kind),
		Status:        string(task.Status),
		WatermarkType: task.WatermarkType,
		ErrorKind:     task.ErrorKind,
		ErrorMessage:  task.ErrorMessage,
		CreatedAt:     formatTime(task.CreatedAt),
		UpdatedAt:     formatTime(task.UpdatedAt),
	}
	if task.Status == queue.StatusCompleted {
		out.DownloadURL = DownloadURL(task.Kind, task.ID)
	}
	return out
}

// FromTasks converts a list of queue rows.
func FromTasks(tasks []*queue.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromRecord converts a progress record.
func FromRecord(rec progress.Record) ProgressResponse {
	return ProgressResponse{
		TaskID:    rec.TaskID,
		Progress:  rec.Progress,
		Timestamp: rec.Timestamp,
		Status:    string(rec.Status),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

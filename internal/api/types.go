package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// RemoveResponse is returned by POST /api/v1/remove-watermark.
type RemoveResponse struct {
	Success     bool   `json:"success"`
	TaskID      string `json:"task_id,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VideoAccepted is returned by POST /api/v1/remove-watermark-video.
type VideoAccepted struct {
	TaskID      string `json:"task_id"`
	ProgressURL string `json:"progress_url"`
	DownloadURL string `json:"download_url"`
}

// ProgressResponse is returned by GET /api/v1/video-progress/{task_id}.
type ProgressResponse struct {
	TaskID    string    `json:"task_id"`
	Progress  float64   `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Task describes a task row in a transport-friendly format.
type Task struct {
	ID            string `json:"task_id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	WatermarkType string `json:"watermark_type,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	DownloadURL   string `json:"download_url,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// TaskListResponse wraps recent tasks.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// DependencyStatus describes an external binary the daemon relies on.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus is returned by GET /api/v1/status.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	Progress     string             `json:"progress_backend"`
	Encoder      string             `json:"encoder"`
	TaskCounts   map[string]int     `json:"task_counts"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

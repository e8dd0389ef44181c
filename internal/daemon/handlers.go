package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"unmark/internal/api"
	"unmark/internal/fileutil"
	"unmark/internal/logging"
	"unmark/internal/queue"
	"unmark/internal/services"
	"unmark/internal/tasks"
)

const (
	multipartMemory  = 8 << 20
	defaultTaskLimit = 50
	maxTaskLimit     = 500
)

var (
	imageExtensions = map[string]struct{}{
		"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "bmp": {}, "tiff": {},
	}
	videoExtensions = map[string]struct{}{
		"mp4": {}, "mov": {}, "avi": {}, "mkv": {}, "webm": {},
	}
)

// uploadError carries the HTTP status a rejected upload maps to.
type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string { return e.message }

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy", Service: "watermark-removal"})
}

func (s *apiServer) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	upload, watermarkType, err := s.receiveUpload(w, r, "image", s.maxImageBytes, imageExtensions)
	if err != nil {
		s.rejectUpload(w, r, err)
		return
	}

	taskID, ok := s.tasks.SubmitImage(r.Context(), tasks.ImageRequest{
		TaskID:        upload.TaskID,
		InputPath:     upload.InputPath,
		WatermarkType: watermarkType,
	})
	if !ok {
		writeJSON(w, http.StatusInternalServerError, api.RemoveResponse{
			Success: false,
			TaskID:  taskID,
			Error:   "failed to process image",
		})
		return
	}
	writeJSON(w, http.StatusOK, api.RemoveResponse{
		Success:     true,
		TaskID:      taskID,
		DownloadURL: api.DownloadURL(queue.KindImage, taskID),
	})
}

func (s *apiServer) handleRemoveVideo(w http.ResponseWriter, r *http.Request) {
	upload, watermarkType, err := s.receiveUpload(w, r, "video", s.maxVideoBytes, videoExtensions)
	if err != nil {
		s.rejectUpload(w, r, err)
		return
	}

	taskID, err := s.tasks.SubmitVideo(r.Context(), tasks.VideoRequest{
		TaskID:        upload.TaskID,
		InputPath:     upload.InputPath,
		WatermarkType: watermarkType,
	})
	if err != nil {
		_ = os.Remove(upload.InputPath)
		if errors.Is(err, tasks.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, "service is shutting down")
			return
		}
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()),
			"video admission failed", "video_admission_failed",
			logging.String(logging.FieldTaskID, upload.TaskID),
			logging.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to queue video")
		return
	}
	writeJSON(w, http.StatusAccepted, api.VideoAccepted{
		TaskID:      taskID,
		ProgressURL: api.ProgressURL(taskID),
		DownloadURL: api.DownloadURL(queue.KindVideo, taskID),
	})
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.tasks.GetProgress(r.Context(), r.PathValue("task_id"))
	if err != nil {
		s.log().Warn("progress read failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "progress unavailable")
		return
	}
	writeJSON(w, http.StatusOK, api.FromRecord(rec))
}

func (s *apiServer) handleDownload(kind queue.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := s.tasks.GetResult(r.Context(), kind, r.PathValue("task_id"))
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		if err != nil {
			s.log().Warn("result lookup failed", logging.Error(err))
			writeError(w, http.StatusInternalServerError, "result unavailable")
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
		http.ServeFile(w, r, path)
	}
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	limit := defaultTaskLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxTaskLimit)
	}
	rows, err := s.tasks.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: api.FromTasks(rows)})
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Task(r.Context(), r.PathValue("task_id"))
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.FromTask(task))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	status := s.status.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	counts := make(map[string]int, len(status.TaskCounts))
	for k, v := range status.TaskCounts {
		counts[string(k)] = v
	}
	writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Progress:     status.ProgressBackend,
		Encoder:      status.Encoder,
		TaskCounts:   counts,
		Dependencies: deps,
	})
}

// receiveUpload enforces the size limit and extension allow-list for field
// and saves the file under a freshly reserved task id.
func (s *apiServer) receiveUpload(w http.ResponseWriter, r *http.Request, field string, limit int64, allowed map[string]struct{}) (tasks.Upload, string, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tasks.Upload{}, "", &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit)}
		}
		return tasks.Upload{}, "", &uploadError{http.StatusBadRequest, "invalid multipart form"}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(field)
	if err != nil {
		return tasks.Upload{}, "", &uploadError{http.StatusBadRequest, fmt.Sprintf("no %s file provided", field)}
	}
	defer file.Close()
	if header.Filename == "" {
		return tasks.Upload{}, "", &uploadError{http.StatusBadRequest, "no file selected"}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if _, ok := allowed[ext]; !ok {
		return tasks.Upload{}, "", &uploadError{http.StatusBadRequest, "invalid file type"}
	}

	upload := s.tasks.Reserve(ext)
	err = fileutil.WriteAtomic(upload.InputPath, func(tmpPath string) error {
		out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, file); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
	if err != nil {
		return tasks.Upload{}, "", fmt.Errorf("save upload: %w", err)
	}
	return upload, strings.TrimSpace(r.FormValue("watermark_type")), nil
}

func (s *apiServer) rejectUpload(w http.ResponseWriter, r *http.Request, err error) {
	var uerr *uploadError
	if errors.As(err, &uerr) {
		logging.WithContext(r.Context(), s.log()).Info("upload rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", uerr.status),
			slog.String("reason", uerr.message),
		)
		writeError(w, uerr.status, uerr.message)
		return
	}
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()),
		"upload save failed", "upload_save_failed", logging.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to save upload")
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"unmark/internal/api"
	"unmark/internal/config"
	"unmark/internal/progress"
	"unmark/internal/queue"
	"unmark/internal/tasks"
)

// taskService is the slice of the orchestrator the HTTP handlers use.
type taskService interface {
	Reserve(ext string) tasks.Upload
	SubmitImage(ctx context.Context, req tasks.ImageRequest) (string, bool)
	SubmitVideo(ctx context.Context, req tasks.VideoRequest) (string, error)
	GetProgress(ctx context.Context, taskID string) (progress.Record, error)
	GetResult(ctx context.Context, kind queue.Kind, taskID string) (string, error)
	Recent(ctx context.Context, limit int) ([]*queue.Task, error)
	Task(ctx context.Context, taskID string) (*queue.Task, error)
}

// statusSource reports daemon runtime information for GET /api/v1/status.
type statusSource interface {
	Status(ctx context.Context) Status
}

type apiServer struct {
	bind          string
	logger        *slog.Logger
	tasks         taskService
	status        statusSource
	maxImageBytes int64
	maxVideoBytes int64

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, svc taskService, status statusSource, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("api server requires config and task service")
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}

	srv := &apiServer{
		bind:          bind,
		logger:        logger,
		tasks:         svc,
		status:        status,
		maxImageBytes: cfg.API.MaxUploadBytes,
		maxVideoBytes: cfg.API.MaxVideoUploadBytes,
	}

	token := strings.TrimSpace(cfg.API.Token)
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathHealth, srv.handleHealth)
	mux.HandleFunc("POST "+api.PathRemove, authMiddleware(token, srv.handleRemoveImage))
	mux.HandleFunc("GET "+api.PathDownload+"{task_id}", authMiddleware(token, srv.handleDownload(queue.KindImage)))
	mux.HandleFunc("POST "+api.PathRemoveVideo, authMiddleware(token, srv.handleRemoveVideo))
	mux.HandleFunc("GET "+api.PathVideoProgress+"{task_id}", authMiddleware(token, srv.handleProgress))
	mux.HandleFunc("GET "+api.PathDownloadVideo+"{task_id}", authMiddleware(token, srv.handleDownload(queue.KindVideo)))
	mux.HandleFunc("GET "+api.PathTasks, authMiddleware(token, srv.handleTasks))
	mux.HandleFunc("GET "+api.PathTasks+"/{task_id}", authMiddleware(token, srv.handleTask))
	mux.HandleFunc("GET "+api.PathStatus, authMiddleware(token, srv.handleStatus))

	handler := recoverMiddleware(srv.log(), mux)
	handler = loggingMiddleware(srv.log(), handler)
	handler = requestIDMiddleware(handler)

	srv.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler exposes the routed handler chain.
func (s *apiServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) log() *slog.Logger {
	if s == nil || s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Success: false, Error: message})
}

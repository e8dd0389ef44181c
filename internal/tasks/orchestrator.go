package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"unmark/internal/logging"
	"unmark/internal/progress"
	"unmark/internal/queue"
	"unmark/internal/services"
)

// ErrStopped is returned when a video is submitted to an orchestrator that
// is not running.
var ErrStopped = errors.New("task orchestrator is not running")

// ImageProcessor restores one image synchronously.
type ImageProcessor interface {
	Process(ctx context.Context, inputPath, outputPath, watermarkType string) bool
}

// VideoProcessor restores one video and reports progress under taskID.
type VideoProcessor interface {
	Process(ctx context.Context, inputPath, outputPath, watermarkType, taskID string) bool
}

// Notifier is told when a background video job ends.
type Notifier interface {
	NotifyVideoCompleted(ctx context.Context, taskID string, elapsed time.Duration) error
	NotifyVideoFailed(ctx context.Context, taskID, reason string) error
}

// Options configures file placement and concurrency.
type Options struct {
	UploadDir            string
	OutputDir            string
	DefaultWatermarkType string
	// VideoExtension is the delivered container, ".mp4" unless a final
	// encoder writes something else.
	VideoExtension string
	// MaxConcurrentVideos caps running video jobs; zero means unbounded.
	MaxConcurrentVideos int
	// Notifier is optional.
	Notifier Notifier
}

// Upload is a reserved task id and the path its input must be saved to.
type Upload struct {
	TaskID    string
	InputPath string
}

// ImageRequest submits a saved image upload.
type ImageRequest struct {
	TaskID        string
	InputPath     string
	WatermarkType string
}

// VideoRequest submits a saved video upload.
type VideoRequest struct {
	TaskID        string
	InputPath     string
	WatermarkType string
}

type videoJob struct {
	task *queue.Task
}

// Orchestrator admits image and video tasks. Images run on the caller's
// goroutine; videos are handed to a dispatcher that starts one goroutine per
// job on the orchestrator's own context.
type Orchestrator struct {
	store    *queue.Store
	progress progress.Store
	images   ImageProcessor
	videos   VideoProcessor
	opts     Options
	logger   *slog.Logger

	jobs chan videoJob
	sem  chan struct{}

	mu      sync.RWMutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an orchestrator. progressStore may be the task store itself.
func New(store *queue.Store, progressStore progress.Store, images ImageProcessor, videos VideoProcessor, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.VideoExtension == "" {
		opts.VideoExtension = ".mp4"
	}
	if opts.DefaultWatermarkType == "" {
		opts.DefaultWatermarkType = "istock"
	}
	o := &Orchestrator{
		store:    store,
		progress: progressStore,
		images:   images,
		videos:   videos,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		jobs:     make(chan videoJob, 16),
	}
	if opts.MaxConcurrentVideos > 0 {
		o.sem = make(chan struct{}, opts.MaxConcurrentVideos)
	}
	return o
}

// Start recovers tasks interrupted by a previous run and launches the
// video dispatcher.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("task orchestrator already running")
	}
	o.mu.Unlock()

	ids, err := o.store.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if werr := o.progress.Write(ctx, id, progress.FailedValue, progress.StatusFailed); werr != nil {
			o.warnProgress(o.logger, id, werr)
		}
	}
	if len(ids) > 0 {
		logging.WarnWithContext(o.logger, "failed tasks interrupted by previous run", "tasks_recovered",
			logging.Int("count", len(ids)),
			logging.String(logging.FieldImpact, "clients polling these tasks see a failure"),
			logging.String(logging.FieldErrorHint, "resubmit the affected uploads"),
		)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.runCtx, o.cancel = context.WithCancel(ctx)
	o.running = true
	o.wg.Add(1)
	go o.dispatch(o.runCtx)
	return nil
}

// Stop cancels running videos and waits for them to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
	o.drainPending()
}

// Running reports whether the dispatcher is active.
func (o *Orchestrator) Running() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// Reserve allocates a task id and the upload path for a file with the
// given extension.
func (o *Orchestrator) Reserve(ext string) Upload {
	id := uuid.NewString()
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return Upload{TaskID: id, InputPath: filepath.Join(o.opts.UploadDir, id+"_input."+ext)}
}

// OutputPath returns where the result for a task of kind is written.
func (o *Orchestrator) OutputPath(kind queue.Kind, taskID string) string {
	if kind == queue.KindVideo {
		return filepath.Join(o.opts.OutputDir, taskID+"_output"+o.opts.VideoExtension)
	}
	return filepath.Join(o.opts.OutputDir, taskID+"_output.png")
}

// SubmitImage processes an image synchronously and reports success.
func (o *Orchestrator) SubmitImage(ctx context.Context, req ImageRequest) (string, bool) {
	task := o.newTask(queue.KindImage, req.TaskID, req.InputPath, req.WatermarkType)
	task.Status = queue.StatusProcessing
	// A started image runs to a terminal state even if the client goes away.
	ctx = services.WithTaskID(context.WithoutCancel(ctx), task.ID)
	logger := logging.WithContext(ctx, o.logger)

	if err := o.store.Create(ctx, task); err != nil {
		logging.ErrorWithContext(logger, "persist image task failed", "task_create_failed", logging.Error(err))
		o.removeInput(logger, task.InputPath)
		return task.ID, false
	}
	o.writeProgress(ctx, logger, task.ID, 0, progress.StatusProcessing)

	ok := o.images.Process(ctx, task.InputPath, task.OutputPath, task.WatermarkType)
	o.finish(ctx, logger, task, ok)
	o.removeInput(logger, task.InputPath)
	return task.ID, ok
}

// SubmitVideo admits a video and returns without waiting for it. The error
// covers admission only.
func (o *Orchestrator) SubmitVideo(ctx context.Context, req VideoRequest) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.running {
		return "", ErrStopped
	}

	task := o.newTask(queue.KindVideo, req.TaskID, req.InputPath, req.WatermarkType)
	logger := logging.WithContext(services.WithTaskID(ctx, task.ID), o.logger)
	if err := o.store.Create(ctx, task); err != nil {
		return "", fmt.Errorf("admit video: %w", err)
	}
	o.writeProgress(ctx, logger, task.ID, 0, progress.StatusQueued)

	select {
	case o.jobs <- videoJob{task: task}:
	case <-o.runCtx.Done():
		return "", ErrStopped
	}
	logger.Info("video admitted",
		logging.String(logging.FieldEventType, "video_admitted"),
		logging.String("input", task.InputPath),
		logging.String("watermark_type", task.WatermarkType),
	)
	return task.ID, nil
}

// GetProgress returns the latest progress for taskID. Unknown ids yield a
// not_found record and no error.
func (o *Orchestrator) GetProgress(ctx context.Context, taskID string) (progress.Record, error) {
	if !validID(taskID) {
		return progress.NotFound(taskID), nil
	}
	return o.progress.Read(ctx, taskID)
}

// GetResult returns the output path of a finished task of kind.
func (o *Orchestrator) GetResult(ctx context.Context, kind queue.Kind, taskID string) (string, error) {
	if !validID(taskID) {
		return "", services.ErrNotFound
	}
	task, err := o.store.GetByID(ctx, taskID)
	if err != nil {
		return "", err
	}
	// the output file is published before the row turns completed
	if task == nil || task.Kind != kind || task.Status == queue.StatusFailed || task.OutputPath == "" {
		return "", services.ErrNotFound
	}
	if _, err := os.Stat(task.OutputPath); err != nil {
		return "", services.ErrNotFound
	}
	return task.OutputPath, nil
}

// Task returns the stored task row, or services.ErrNotFound.
func (o *Orchestrator) Task(ctx context.Context, taskID string) (*queue.Task, error) {
	if !validID(taskID) {
		return nil, services.ErrNotFound
	}
	task, err := o.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, services.ErrNotFound
	}
	return task, nil
}

// Recent lists the newest tasks.
func (o *Orchestrator) Recent(ctx context.Context, limit int) ([]*queue.Task, error) {
	return o.store.List(ctx, limit)
}

func (o *Orchestrator) newTask(kind queue.Kind, id, input, watermarkType string) *queue.Task {
	if id == "" {
		id = uuid.NewString()
	}
	if strings.TrimSpace(watermarkType) == "" {
		watermarkType = o.opts.DefaultWatermarkType
	}
	return &queue.Task{
		ID:            id,
		Kind:          kind,
		InputPath:     input,
		OutputPath:    o.OutputPath(kind, id),
		WatermarkType: watermarkType,
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

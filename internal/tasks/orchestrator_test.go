package tasks_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"unmark/internal/logging"
	"unmark/internal/progress"
	"unmark/internal/queue"
	"unmark/internal/services"
	"unmark/internal/tasks"
	"unmark/internal/testsupport"
)

type stubImages struct {
	ok bool
}

func (s stubImages) Process(_ context.Context, _, outputPath, _ string) bool {
	if !s.ok {
		return false
	}
	return os.WriteFile(outputPath, []byte("png"), 0o644) == nil
}

type stubVideos struct {
	release   chan struct{}
	ok        bool
	ctxErr    atomic.Value
	active    atomic.Int32
	maxActive atomic.Int32
	started   chan string
}

func newStubVideos(ok bool) *stubVideos {
	return &stubVideos{release: make(chan struct{}), ok: ok, started: make(chan string, 8)}
}

func (s *stubVideos) Process(ctx context.Context, _, outputPath, _, taskID string) bool {
	current := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		seen := s.maxActive.Load()
		if current <= seen || s.maxActive.CompareAndSwap(seen, current) {
			break
		}
	}
	s.started <- taskID
	select {
	case <-s.release:
	case <-ctx.Done():
		return false
	}
	if ctx.Err() != nil {
		s.ctxErr.Store(ctx.Err())
	}
	if !s.ok {
		return false
	}
	return os.WriteFile(outputPath, []byte("mp4"), 0o644) == nil
}

type fixture struct {
	orch   *tasks.Orchestrator
	store  *queue.Store
	upload string
}

func newFixture(t *testing.T, images tasks.ImageProcessor, videos tasks.VideoProcessor, maxConcurrent int) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	orch := tasks.New(store, store, images, videos, tasks.Options{
		UploadDir:           cfg.Paths.UploadDir,
		OutputDir:           cfg.Paths.OutputDir,
		MaxConcurrentVideos: maxConcurrent,
	}, logging.NewNop())
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(orch.Stop)
	return fixture{orch: orch, store: store, upload: cfg.Paths.UploadDir}
}

func (f fixture) saveUpload(t *testing.T, ext string) tasks.Upload {
	t.Helper()
	upload := f.orch.Reserve(ext)
	if filepath.Dir(upload.InputPath) != f.upload {
		t.Fatalf("upload outside upload dir: %s", upload.InputPath)
	}
	testsupport.WriteFile(t, upload.InputPath, 32)
	return upload
}

func waitForStatus(t *testing.T, f fixture, id string, want progress.Status) progress.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := f.orch.GetProgress(context.Background(), id)
		if err != nil {
			t.Fatalf("GetProgress: %v", err)
		}
		if rec.Status == want {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached %s", id, want)
	return progress.Record{}
}

func TestSubmitImageSuccess(t *testing.T) {
	f := newFixture(t, stubImages{ok: true}, newStubVideos(true), 0)
	upload := f.saveUpload(t, ".JPG")
	if filepath.Ext(upload.InputPath) != ".jpg" {
		t.Fatalf("expected lower-cased extension, got %s", upload.InputPath)
	}

	id, ok := f.orch.SubmitImage(context.Background(), tasks.ImageRequest{TaskID: upload.TaskID, InputPath: upload.InputPath})
	if !ok || id != upload.TaskID {
		t.Fatalf("SubmitImage = %q, %v", id, ok)
	}
	if _, err := os.Stat(upload.InputPath); !os.IsNotExist(err) {
		t.Fatal("input should be removed after processing")
	}
	path, err := f.orch.GetResult(context.Background(), queue.KindImage, id)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if filepath.Base(path) != id+"_output.png" {
		t.Fatalf("unexpected output path %s", path)
	}
	if _, err := f.orch.GetResult(context.Background(), queue.KindVideo, id); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("kind mismatch should be not found, got %v", err)
	}

	task, err := f.orch.Task(context.Background(), id)
	if err != nil || task.Status != queue.StatusCompleted || task.WatermarkType != "istock" {
		t.Fatalf("unexpected task %+v err=%v", task, err)
	}
}

func TestSubmitImageFailure(t *testing.T) {
	f := newFixture(t, stubImages{ok: false}, newStubVideos(true), 0)
	upload := f.saveUpload(t, "png")

	id, ok := f.orch.SubmitImage(context.Background(), tasks.ImageRequest{TaskID: upload.TaskID, InputPath: upload.InputPath, WatermarkType: "getty"})
	if ok {
		t.Fatal("expected failure")
	}
	if _, err := f.orch.GetResult(context.Background(), queue.KindImage, id); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	rec, _ := f.orch.GetProgress(context.Background(), id)
	if rec.Progress != progress.FailedValue || rec.Status != progress.StatusFailed {
		t.Fatalf("unexpected progress %+v", rec)
	}
	task, _ := f.orch.Task(context.Background(), id)
	if task.ErrorMessage == "" || task.WatermarkType != "getty" {
		t.Fatalf("unexpected task %+v", task)
	}
}

type cancellingImages struct {
	cancel context.CancelFunc
	seen   *error
}

func (c cancellingImages) Process(ctx context.Context, _, _, _ string) bool {
	c.cancel()
	*c.seen = ctx.Err()
	return false
}

func TestSubmitImageOutlivesRequestContext(t *testing.T) {
	var seen error
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, cancellingImages{cancel: cancel, seen: &seen}, newStubVideos(true), 0)
	upload := f.saveUpload(t, "png")

	id, ok := f.orch.SubmitImage(ctx, tasks.ImageRequest{TaskID: upload.TaskID, InputPath: upload.InputPath})
	if ok {
		t.Fatal("expected failure")
	}
	if seen != nil {
		t.Fatalf("processor saw cancelled context: %v", seen)
	}
	rec, err := f.orch.GetProgress(context.Background(), id)
	if err != nil || rec.Progress != progress.FailedValue || rec.Status != progress.StatusFailed {
		t.Fatalf("unexpected progress %+v err=%v", rec, err)
	}
	task, err := f.orch.Task(context.Background(), id)
	if err != nil || task.Status != queue.StatusFailed {
		t.Fatalf("task not terminal: %+v err=%v", task, err)
	}
}

func TestSubmitVideoIsFireAndForget(t *testing.T) {
	videos := newStubVideos(true)
	f := newFixture(t, stubImages{}, videos, 0)
	upload := f.saveUpload(t, "mp4")

	reqCtx, cancel := context.WithCancel(context.Background())
	id, err := f.orch.SubmitVideo(reqCtx, tasks.VideoRequest{TaskID: upload.TaskID, InputPath: upload.InputPath})
	if err != nil {
		t.Fatalf("SubmitVideo: %v", err)
	}
	cancel()

	select {
	case started := <-videos.started:
		if started != id {
			t.Fatalf("unexpected task started %s", started)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("video job never started")
	}
	rec, _ := f.orch.GetProgress(context.Background(), id)
	if rec.Terminal() {
		t.Fatalf("video should still be running, got %+v", rec)
	}
	if _, err := f.orch.GetResult(context.Background(), queue.KindVideo, id); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("result must not exist yet, got %v", err)
	}

	close(videos.release)
	rec = waitForStatus(t, f, id, progress.StatusCompleted)
	if rec.Progress != 1.0 {
		t.Fatalf("unexpected final progress %v", rec.Progress)
	}
	if videos.ctxErr.Load() != nil {
		t.Fatal("request cancellation must not reach the video job")
	}
	if _, err := f.orch.GetResult(context.Background(), queue.KindVideo, id); err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(upload.InputPath); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("video input should be removed when the job ends")
}

func TestMaxConcurrentVideos(t *testing.T) {
	videos := newStubVideos(true)
	f := newFixture(t, stubImages{}, videos, 1)

	var ids []string
	for i := 0; i < 3; i++ {
		upload := f.saveUpload(t, "mp4")
		id, err := f.orch.SubmitVideo(context.Background(), tasks.VideoRequest{TaskID: upload.TaskID, InputPath: upload.InputPath})
		if err != nil {
			t.Fatalf("SubmitVideo: %v", err)
		}
		ids = append(ids, id)
	}
	<-videos.started
	close(videos.release)
	for _, id := range ids {
		waitForStatus(t, f, id, progress.StatusCompleted)
	}
	if videos.maxActive.Load() != 1 {
		t.Fatalf("expected one running video at a time, saw %d", videos.maxActive.Load())
	}
}

func TestStopFailsRunningAndRejectsNewVideos(t *testing.T) {
	videos := newStubVideos(true)
	f := newFixture(t, stubImages{}, videos, 0)
	upload := f.saveUpload(t, "mp4")
	id, err := f.orch.SubmitVideo(context.Background(), tasks.VideoRequest{TaskID: upload.TaskID, InputPath: upload.InputPath})
	if err != nil {
		t.Fatalf("SubmitVideo: %v", err)
	}
	<-videos.started

	f.orch.Stop()
	if f.orch.Running() {
		t.Fatal("expected orchestrator to be stopped")
	}
	rec, _ := f.orch.GetProgress(context.Background(), id)
	if rec.Status != progress.StatusFailed {
		t.Fatalf("expected failed after stop, got %+v", rec)
	}
	if _, err := f.orch.SubmitVideo(context.Background(), tasks.VideoRequest{InputPath: "x.mp4"}); !errors.Is(err, tasks.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestGetProgressUnknownTask(t *testing.T) {
	f := newFixture(t, stubImages{}, newStubVideos(true), 0)
	for _, id := range []string{uuid.NewString(), "../../etc/passwd"} {
		rec, err := f.orch.GetProgress(context.Background(), id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Status != progress.StatusNotFound || rec.Progress != 0 {
			t.Fatalf("unexpected record %+v", rec)
		}
		if _, err := f.orch.GetResult(context.Background(), queue.KindVideo, id); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
}

func TestStartRecoversInterruptedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stuck := uuid.NewString()
	testsupport.NewTask(t, store, stuck, queue.KindVideo, queue.StatusProcessing)

	recorder := &recordingProgress{}
	orch := tasks.New(store, recorder, stubImages{}, newStubVideos(true), tasks.Options{}, logging.NewNop())
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer orch.Stop()

	task, err := orch.Task(context.Background(), stuck)
	if err != nil || task.Status != queue.StatusFailed || task.ErrorMessage != queue.InterruptedReason {
		t.Fatalf("unexpected task %+v err=%v", task, err)
	}
	if recorder.last(stuck) != progress.FailedValue {
		t.Fatal("expected failure sentinel in the progress store")
	}
	if err := orch.Start(context.Background()); err == nil {
		t.Fatal("expected error when starting twice")
	}
}

type recordingProgress struct {
	mu     sync.Mutex
	values map[string]float64
}

func (r *recordingProgress) Write(_ context.Context, id string, value float64, _ progress.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = make(map[string]float64)
	}
	r.values[id] = value
	return nil
}

func (r *recordingProgress) Read(_ context.Context, id string) (progress.Record, error) {
	return progress.NotFound(id), nil
}

func (r *recordingProgress) last(id string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[id]
}

type recordingNotifier struct {
	events chan string
}

func (n recordingNotifier) NotifyVideoCompleted(_ context.Context, taskID string, _ time.Duration) error {
	n.events <- "completed:" + taskID
	return nil
}

func (n recordingNotifier) NotifyVideoFailed(_ context.Context, taskID, _ string) error {
	n.events <- "failed:" + taskID
	return errors.New("ntfy down")
}

func TestVideoOutcomeNotifications(t *testing.T) {
	for _, ok := range []bool{true, false} {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)
		notifier := recordingNotifier{events: make(chan string, 1)}
		videos := newStubVideos(ok)
		close(videos.release)
		orch := tasks.New(store, store, stubImages{}, videos, tasks.Options{
			UploadDir: cfg.Paths.UploadDir,
			OutputDir: cfg.Paths.OutputDir,
			Notifier:  notifier,
		}, logging.NewNop())
		if err := orch.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		upload := orch.Reserve("mp4")
		testsupport.WriteFile(t, upload.InputPath, 32)
		id, err := orch.SubmitVideo(context.Background(), tasks.VideoRequest{TaskID: upload.TaskID, InputPath: upload.InputPath})
		if err != nil {
			t.Fatalf("SubmitVideo: %v", err)
		}

		want := "failed:" + id
		if ok {
			want = "completed:" + id
		}
		select {
		case got := <-notifier.events:
			if got != want {
				t.Fatalf("notification = %q, want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no notification sent")
		}
		orch.Stop()
	}
}

package daemonrun

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"unmark/internal/api"
	"unmark/internal/config"
	"unmark/internal/inference"
	"unmark/internal/logging"
	"unmark/internal/progress"
	"unmark/internal/queue"
	"unmark/internal/testsupport"
)

type echoModel struct{}

func (echoModel) Infer(_ context.Context, in inference.Tensor) (inference.Tensor, error) {
	return in, nil
}

func TestOpenProgressStoreSQLiteReusesTaskStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	got, closeFn, err := openProgressStore(context.Background(), cfg, store)
	if err != nil {
		t.Fatalf("openProgressStore: %v", err)
	}
	defer closeFn()
	if got != progress.Store(store) {
		t.Fatalf("expected task store as progress store, got %T", got)
	}
}

func TestOpenProgressStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testsupport.NewConfig(t)
	cfg.Progress.Backend = config.ProgressRedis
	cfg.Progress.RedisAddr = mr.Addr()
	store := testsupport.MustOpenStore(t, cfg)

	got, closeFn, err := openProgressStore(context.Background(), cfg, store)
	if err != nil {
		t.Fatalf("openProgressStore: %v", err)
	}
	defer closeFn()
	if _, ok := got.(*progress.RedisStore); !ok {
		t.Fatalf("expected redis store, got %T", got)
	}
	if err := got.Write(context.Background(), "abc", 0.5, progress.StatusProcessing); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rec, err := got.Read(context.Background(), "abc")
	if err != nil || rec.Progress != 0.5 {
		t.Fatalf("unexpected read %#v, %v", rec, err)
	}

	mr.Close()
	if _, _, err := openProgressStore(context.Background(), cfg, store); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestBuildServesHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := Build(cfg, store, store, echoModel{}, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	client := api.NewClient("http://"+d.Addr(), "", 5*time.Second)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "healthy" {
		t.Fatalf("unexpected health %#v", health)
	}
}

func TestBuildRecoversInterruptedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	id := "11111111-1111-1111-1111-111111111111"
	testsupport.NewTask(t, store, id, queue.KindVideo, queue.StatusProcessing)

	d, err := Build(cfg, store, store, echoModel{}, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	resp, err := http.Get("http://" + d.Addr() + api.ProgressURL(id))
	if err != nil {
		t.Fatalf("progress request: %v", err)
	}
	defer resp.Body.Close()
	rec, err := store.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.Status != progress.StatusFailed || rec.Progress != progress.FailedValue {
		t.Fatalf("expected interrupted task failed, got %#v", rec)
	}
}

func TestRunFailsWhenModelUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL("http://127.0.0.1:1"))
	cfg.Model.TimeoutSeconds = 1
	err := Run(context.Background(), cfg, Options{})
	if err == nil {
		t.Fatal("expected model load failure to abort startup")
	}
}

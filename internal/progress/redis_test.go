package progress_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"unmark/internal/progress"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*progress.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	store, err := progress.ConnectRedis(context.Background(), progress.RedisOptions{Addr: server.Addr(), TTL: ttl})
	if err != nil {
		t.Fatalf("ConnectRedis failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func TestRedisStoreUnknownTaskIsNotFound(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	record, err := store.Read(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if record.Status != progress.StatusNotFound || record.Progress != 0 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.TaskID != "missing" {
		t.Fatalf("expected task id echoed, got %q", record.TaskID)
	}
}

func TestRedisStoreOverwrites(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	if err := store.Write(ctx, "t1", 0.4, progress.StatusProcessing); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write(ctx, "t1", progress.FailedValue, progress.StatusFailed); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	record, err := store.Read(ctx, "t1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if record.Progress != -1 || record.Status != progress.StatusFailed {
		t.Fatalf("expected last write to win, got %+v", record)
	}
	if record.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
}

func TestRedisStoreTTL(t *testing.T) {
	store, server := newRedisStore(t, time.Hour)
	ctx := context.Background()
	if err := store.Write(ctx, "t1", 1, progress.StatusCompleted); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	server.FastForward(2 * time.Hour)
	record, err := store.Read(ctx, "t1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if record.Status != progress.StatusNotFound {
		t.Fatalf("expected expired record, got %+v", record)
	}
}

func TestRedisStoreConcurrentKeys(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()
	ids := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 1; i <= 10; i++ {
				if err := store.Write(ctx, id, float64(i)/10, progress.StatusProcessing); err != nil {
					t.Errorf("Write %s failed: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		record, err := store.Read(ctx, id)
		if err != nil {
			t.Fatalf("Read %s failed: %v", id, err)
		}
		if record.Progress != 1 {
			t.Fatalf("expected %s at 1.0, got %v", id, record.Progress)
		}
	}
}

func TestReporterNilStoreIsNoop(t *testing.T) {
	reporter := progress.NewReporter(nil, "t1")
	if err := reporter.Report(context.Background(), 0.5); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var nilReporter *progress.Reporter
	if err := nilReporter.Fail(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

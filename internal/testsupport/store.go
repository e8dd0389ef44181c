package testsupport

import (
	"context"
	"testing"

	"unmark/internal/config"
	"unmark/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask inserts a task row with the given id, kind and status.
func NewTask(t testing.TB, store *queue.Store, id string, kind queue.Kind, status queue.Status) *queue.Task {
	t.Helper()

	task := &queue.Task{ID: id, Kind: kind, Status: status, WatermarkType: "istock"}
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return task
}

package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestBackoffRetriesOnlyBusyErrors(t *testing.T) {
	b := backoff{attempts: 3, first: time.Millisecond, ceiling: 2 * time.Millisecond}

	calls := 0
	err := b.retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got err=%v calls=%d", err, calls)
	}

	calls = 0
	err = b.retry(context.Background(), func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected busy error after 3 attempts, got err=%v calls=%d", err, calls)
	}

	calls = 0
	boom := errors.New("constraint failed")
	if err := b.retry(context.Background(), func() error { calls++; return boom }); !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("non-busy errors must not retry, got err=%v calls=%d", err, calls)
	}
}

func TestBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := backoff{attempts: 10, first: time.Second, ceiling: time.Second}
	err := b.retry(ctx, func() error { return errors.New("database is locked") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpenPathRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.db.Exec(`UPDATE schema_version SET version = ?`, schemaVersion+1); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := OpenPath(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}

	reopened, err := OpenPath(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("fresh OpenPath: %v", err)
	}
	_ = reopened.Close()
}

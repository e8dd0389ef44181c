package tasks

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"unmark/internal/logging"
	"unmark/internal/queue"
	"unmark/internal/testsupport"
)

type countingVideos struct {
	calls atomic.Int32
}

func (c *countingVideos) Process(context.Context, string, string, string, string) bool {
	c.calls.Add(1)
	return true
}

type noImages struct{}

func (noImages) Process(context.Context, string, string, string) bool { return false }

func TestDispatchAfterCancelInterruptsPendingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	videos := &countingVideos{}
	o := New(store, store, noImages{}, videos, Options{}, logging.NewNop())

	// select picks randomly between a ready job and a done context.
	for i := 0; i < 20; i++ {
		task := testsupport.NewTask(t, store, uuid.NewString(), queue.KindVideo, queue.StatusQueued)
		o.jobs <- videoJob{task: task}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		o.wg.Add(1)
		o.dispatch(ctx)
		o.wg.Wait()
		o.drainPending()

		got, err := store.GetByID(context.Background(), task.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status != queue.StatusFailed || got.ErrorKind != "interrupted" {
			t.Fatalf("iteration %d: expected interrupted failure, got %+v", i, got)
		}
	}
	if n := videos.calls.Load(); n != 0 {
		t.Fatalf("video processor ran %d times after cancel", n)
	}
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"unmark/internal/config"
	"unmark/internal/deps"
	"unmark/internal/logging"
	"unmark/internal/preflight"
	"unmark/internal/queue"
	"unmark/internal/staging"
	"unmark/internal/tasks"
)

// Daemon coordinates the orchestrator, retention sweeper and HTTP API and
// enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *queue.Store
	orchestrator *tasks.Orchestrator
	sweeper      *staging.Sweeper
	api          *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	DatabasePath    string
	LockFilePath    string
	ProgressBackend string
	Encoder         string
	TaskCounts      map[queue.Status]int
	Dependencies    []deps.Status
}

// New constructs a daemon with initialized dependencies. sweeper may be nil.
func New(cfg *config.Config, store *queue.Store, orchestrator *tasks.Orchestrator, sweeper *staging.Sweeper, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || orchestrator == nil {
		return nil, errors.New("daemon requires config, store, logger, and orchestrator")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		orchestrator: orchestrator,
		sweeper:      sweeper,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}
	srv, err := newAPIServer(cfg, orchestrator, d, logging.NewComponentLogger(logger, "api"))
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted tasks and begins
// serving requests.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another unmark daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.orchestrator.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.orchestrator.Stop()
		d.abortStart()
		return err
	}

	if d.sweeper != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.sweeper.Run(d.ctx)
		}()
	}

	d.running.Store(true)
	d.logger.Info("unmark daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops accepting requests, fails running video jobs and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.orchestrator.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("unmark daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the API server is listening on.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("task stats unavailable", logging.Error(err))
	}
	return Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
		ProgressBackend: d.cfg.Progress.Backend,
		Encoder:         d.cfg.Video.Encoder,
		TaskCounts:      counts,
		Dependencies:    preflight.CheckSystemDeps(d.cfg),
	}
}

package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"unmark/internal/config"
	"unmark/internal/daemon"
	"unmark/internal/deps"
	"unmark/internal/inference"
	"unmark/internal/logging"
	"unmark/internal/notifications"
	"unmark/internal/pipeline"
	"unmark/internal/preflight"
	"unmark/internal/progress"
	"unmark/internal/queue"
	"unmark/internal/services"
	"unmark/internal/services/drapto"
	"unmark/internal/staging"
	"unmark/internal/tasks"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Ready, when set, receives the daemon once it is serving.
	Ready func(*daemon.Daemon)
}

// Run starts the unmark daemon and blocks until the context is cancelled
// or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	for _, result := range preflight.Failures(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "requests depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run unmark doctor for details"),
		)
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "unmark.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return err
	}
	defer store.Close()

	progressStore, closeProgress, err := openProgressStore(signalCtx, cfg, store)
	if err != nil {
		logger.Error("open progress store", logging.Error(err))
		return err
	}
	defer closeProgress()

	session, err := inference.Load(signalCtx,
		inference.NewHTTPBackend(cfg.Model.BackendURL, cfg.ModelTimeout()),
		cfg.Model.CheckpointDir, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "model load failed", "model_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return fmt.Errorf("load model: %w", err)
	}

	d, err := Build(cfg, store, progressStore, session, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that no other daemon uses this state directory and the bind address is free"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d)
	}

	<-signalCtx.Done()
	logger.Info("unmark daemon shutting down")
	return nil
}

// Build assembles the pipelines, orchestrator and sweeper around a loaded
// model and returns an unstarted daemon.
func Build(cfg *config.Config, store *queue.Store, progressStore progress.Store, model pipeline.Inferer, logger *slog.Logger) (*daemon.Daemon, error) {
	pre := inference.NewMaskPreprocessor(cfg.Model.MaskDir)
	tool := pipeline.NewMediaTool(cfg.Video.FFmpegBinary,
		deps.ResolveFFprobe(cfg.Video.FFmpegBinary, cfg.Video.FFprobeBinary))

	videoOpts := pipeline.VideoOptions{
		ScratchDir:         cfg.Paths.ScratchDir,
		MaxDurationSeconds: cfg.Video.MaxDurationSeconds,
		DefaultFPS:         cfg.Video.DefaultFPS,
	}
	videoExt := ".mp4"
	if cfg.Video.Encoder == config.EncoderDrapto {
		videoOpts.Encoder = drapto.NewLibrary()
		videoExt = ".mkv"
	}

	images := pipeline.NewImage(model, pre, logger)
	videos := pipeline.NewVideo(model, pre, tool, progressStore, videoOpts, logger)
	orchestrator := tasks.New(store, progressStore, images, videos, tasks.Options{
		UploadDir:            cfg.Paths.UploadDir,
		OutputDir:            cfg.Paths.OutputDir,
		DefaultWatermarkType: cfg.Model.DefaultWatermarkType,
		VideoExtension:       videoExt,
		MaxConcurrentVideos:  cfg.Video.MaxConcurrent,
		Notifier:             notifications.NewService(cfg),
	}, logger)

	sweeper := staging.NewSweeper(store, staging.Policy{
		OutputDir:     cfg.Paths.OutputDir,
		UploadDir:     cfg.Paths.UploadDir,
		ScratchDir:    cfg.Paths.ScratchDir,
		OutputMaxAge:  cfg.OutputMaxAge(),
		ScratchMaxAge: cfg.ScratchMaxAge(),
		Interval:      cfg.SweepInterval(),
	}, logger)
	if pruner, ok := progressStore.(staging.ProgressPruner); ok {
		sweeper.WithProgress(pruner)
	}

	return daemon.New(cfg, store, orchestrator, sweeper, logger)
}

// openProgressStore returns the configured progress backend. The sqlite
// backend is the task store itself.
func openProgressStore(ctx context.Context, cfg *config.Config, store *queue.Store) (progress.Store, func(), error) {
	if cfg.Progress.Backend != config.ProgressRedis {
		return store, func() {}, nil
	}
	redisStore, err := progress.ConnectRedis(ctx, progress.RedisOptions{
		Addr:     cfg.Progress.RedisAddr,
		Password: cfg.Progress.RedisPassword,
		DB:       cfg.Progress.RedisDB,
		TTL:      cfg.RedisTTL(),
	})
	if err != nil {
		return nil, nil, err
	}
	return redisStore, func() { _ = redisStore.Close() }, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	tools := deps.CheckMediaTools(cfg.Video.FFmpegBinary, cfg.Video.FFprobeBinary)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", tools[0].Available),
		logging.String("ffmpeg_binary", tools[0].Command),
		logging.Bool("ffprobe_available", tools[1].Available),
		logging.String("ffprobe_binary", tools[1].Command),
		logging.String("model_backend", cfg.Model.BackendURL),
		logging.String("checkpoint_dir", cfg.Model.CheckpointDir),
		logging.String("progress_backend", cfg.Progress.Backend),
		logging.String("encoder", cfg.Video.Encoder),
		logging.Int("max_concurrent_videos", cfg.Video.MaxConcurrent),
		logging.Bool("auth_enabled", cfg.API.Token != ""),
	)
	for _, missing := range deps.Missing(tools) {
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Summary()),
			logging.String(logging.FieldImpact, "video tasks will fail"),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set video.ffmpeg_binary / video.ffprobe_binary"),
		)
	}
}

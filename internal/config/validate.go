package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.ScratchDir == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.MaxUploadBytes <= 0 {
		return errors.New("api.max_upload_bytes must be positive")
	}
	if c.API.MaxVideoUploadBytes <= 0 {
		return errors.New("api.max_video_upload_bytes must be positive")
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.BackendURL == "" {
		return errors.New("model.backend_url must be set")
	}
	parsed, err := url.Parse(c.Model.BackendURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("model.backend_url %q is not an absolute URL", c.Model.BackendURL)
	}
	if c.Model.CheckpointDir == "" {
		return errors.New("model.checkpoint_dir must be set")
	}
	if c.Model.MaskDir == "" {
		return errors.New("model.mask_dir must be set")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.MaxDurationSeconds <= 0 || c.Video.MaxDurationSeconds > defaultMaxDurationSeconds {
		return fmt.Errorf("video.max_duration_seconds must be between 0 and %d", defaultMaxDurationSeconds)
	}
	if c.Video.DefaultFPS <= 0 {
		return errors.New("video.default_fps must be positive")
	}
	if c.Video.MaxConcurrent < 0 {
		return errors.New("video.max_concurrent must be zero (unbounded) or positive")
	}
	switch c.Video.Encoder {
	case EncoderFFmpeg, EncoderDrapto:
	default:
		return fmt.Errorf("video.encoder %q is not supported (use %q or %q)", c.Video.Encoder, EncoderFFmpeg, EncoderDrapto)
	}
	return nil
}

func (c *Config) validateProgress() error {
	switch c.Progress.Backend {
	case ProgressSQLite:
		return nil
	case ProgressRedis:
		if c.Progress.RedisAddr == "" {
			return errors.New("progress.redis_addr must be set when progress.backend is redis")
		}
		if c.Progress.RedisTTLHours < 0 {
			return errors.New("progress.redis_ttl_hours must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("progress.backend %q is not supported (use %q or %q)", c.Progress.Backend, ProgressSQLite, ProgressRedis)
	}
}

func (c *Config) validateRetention() error {
	if c.Retention.OutputMaxAgeHours < 0 {
		return errors.New("retention.output_max_age_hours must not be negative")
	}
	if c.Retention.ScratchMaxAgeHours < 0 {
		return errors.New("retention.scratch_max_age_hours must not be negative")
	}
	if c.Retention.SweepIntervalMinutes <= 0 {
		return errors.New("retention.sweep_interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must not be negative")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

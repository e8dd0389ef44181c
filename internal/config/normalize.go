package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeVideo()
	c.normalizeProgress()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.upload_dir", &c.Paths.UploadDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.scratch_dir", &c.Paths.ScratchDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeModel() error {
	var err error
	if c.Model.CheckpointDir, err = expandPath(strings.TrimSpace(c.Model.CheckpointDir)); err != nil {
		return fmt.Errorf("model.checkpoint_dir: %w", err)
	}
	if c.Model.MaskDir, err = expandPath(strings.TrimSpace(c.Model.MaskDir)); err != nil {
		return fmt.Errorf("model.mask_dir: %w", err)
	}
	c.Model.BackendURL = strings.TrimRight(strings.TrimSpace(c.Model.BackendURL), "/")
	if value, ok := os.LookupEnv("UNMARK_MODEL_URL"); ok && strings.TrimSpace(value) != "" {
		c.Model.BackendURL = strings.TrimRight(strings.TrimSpace(value), "/")
	}
	c.Model.DefaultWatermarkType = strings.ToLower(strings.TrimSpace(c.Model.DefaultWatermarkType))
	if c.Model.DefaultWatermarkType == "" {
		c.Model.DefaultWatermarkType = defaultWatermarkType
	}
	if c.Model.TimeoutSeconds <= 0 {
		c.Model.TimeoutSeconds = defaultModelTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("UNMARK_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeVideo() {
	c.Video.Encoder = strings.ToLower(strings.TrimSpace(c.Video.Encoder))
	if c.Video.Encoder == "" {
		c.Video.Encoder = EncoderFFmpeg
	}
	c.Video.FFmpegBinary = strings.TrimSpace(c.Video.FFmpegBinary)
	if c.Video.FFmpegBinary == "" {
		c.Video.FFmpegBinary = defaultFFmpegBinary
	}
	c.Video.FFprobeBinary = strings.TrimSpace(c.Video.FFprobeBinary)
	if c.Video.FFprobeBinary == "" {
		c.Video.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeProgress() {
	c.Progress.Backend = strings.ToLower(strings.TrimSpace(c.Progress.Backend))
	if c.Progress.Backend == "" {
		c.Progress.Backend = ProgressSQLite
	}
	c.Progress.RedisAddr = strings.TrimSpace(c.Progress.RedisAddr)
	if c.Progress.RedisPassword == "" {
		if value, ok := os.LookupEnv("UNMARK_REDIS_PASSWORD"); ok {
			c.Progress.RedisPassword = value
		}
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = "info"
	}
	c.Logging.Level = level
}

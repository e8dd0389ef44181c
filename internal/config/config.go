package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	UploadDir  string `toml:"upload_dir"`
	OutputDir  string `toml:"output_dir"`
	ScratchDir string `toml:"scratch_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// API contains HTTP listener and upload limit settings.
type API struct {
	Bind                string `toml:"bind"`
	Token               string `toml:"token"`
	MaxUploadBytes      int64  `toml:"max_upload_bytes"`
	MaxVideoUploadBytes int64  `toml:"max_video_upload_bytes"`
}

// Model contains settings for the inpainting backend and its preprocessing masks.
type Model struct {
	CheckpointDir        string `toml:"checkpoint_dir"`
	BackendURL           string `toml:"backend_url"`
	MaskDir              string `toml:"mask_dir"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	DefaultWatermarkType string `toml:"default_watermark_type"`
}

// Video contains settings for the frame pipeline.
type Video struct {
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	DefaultFPS         float64 `toml:"default_fps"`
	Encoder            string  `toml:"encoder"`
	MaxConcurrent      int     `toml:"max_concurrent"`
	FFmpegBinary       string  `toml:"ffmpeg_binary"`
	FFprobeBinary      string  `toml:"ffprobe_binary"`
}

// Progress selects where task progress records live.
type Progress struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisTTLHours int    `toml:"redis_ttl_hours"`
}

// Retention controls the background sweeper.
type Retention struct {
	OutputMaxAgeHours    int `toml:"output_max_age_hours"`
	ScratchMaxAgeHours   int `toml:"scratch_max_age_hours"`
	SweepIntervalMinutes int `toml:"sweep_interval_minutes"`
}

// Notifications configures optional ntfy delivery of video outcomes.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for unmark.
//
// Configuration sections by subsystem:
//   - Paths: upload, output, scratch, state and log directories
//   - API: listener address, bearer token and upload limits
//   - Model: inference backend, checkpoint and mask locations
//   - Video: duration cap, frame rate fallback and encoder selection
//   - Progress: sqlite or redis progress records
//   - Retention: output and scratch expiry
//   - Notifications: ntfy topic for finished videos
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	API       API       `toml:"api"`
	Model     Model     `toml:"model"`
	Video     Video     `toml:"video"`
	Progress  Progress  `toml:"progress"`
	Retention     Retention     `toml:"retention"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("unmark.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.ScratchDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite file backing the task store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "unmark.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "unmark.lock")
}

// LogFilePath returns the daemon log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "unmark.log")
}

// ModelTimeout returns the per-request timeout for the inference backend.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// RedisTTL returns how long redis progress records survive.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Progress.RedisTTLHours) * time.Hour
}

// OutputMaxAge returns the retention window for finished outputs.
func (c *Config) OutputMaxAge() time.Duration {
	return time.Duration(c.Retention.OutputMaxAgeHours) * time.Hour
}

// ScratchMaxAge returns the age after which orphaned scratch dirs are removed.
func (c *Config) ScratchMaxAge() time.Duration {
	return time.Duration(c.Retention.ScratchMaxAgeHours) * time.Hour
}

// SweepInterval returns how often the retention sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Retention.SweepIntervalMinutes) * time.Minute
}

// APIBaseURL returns the http URL clients use to reach the daemon.
func (c *Config) APIBaseURL() string {
	bind := c.API.Bind
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return "http://" + bind
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

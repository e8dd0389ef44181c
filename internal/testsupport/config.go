package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"unmark/internal/config"
)

// ConfigOption adjusts a test config before its directories are created.
// base is the per-test temp root.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns a config whose directories all live under t.TempDir()
// and whose API binds an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		UploadDir:  filepath.Join(base, "uploads"),
		OutputDir:  filepath.Join(base, "outputs"),
		ScratchDir: filepath.Join(base, "scratch"),
		StateDir:   filepath.Join(base, "state"),
		LogDir:     filepath.Join(base, "logs"),
	}
	cfg.Model.CheckpointDir = filepath.Join(base, "model")
	cfg.Model.MaskDir = filepath.Join(base, "model", "masks")
	cfg.API.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithBackendURL points the model backend at a test server.
func WithBackendURL(url string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Model.BackendURL = url
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg and
// ffprobe by default) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

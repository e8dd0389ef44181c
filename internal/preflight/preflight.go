package preflight

import (
	"context"

	"unmark/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	results = append(results,
		CheckMasks(cfg.Model.MaskDir, cfg.Model.DefaultWatermarkType),
		CheckModelBackend(ctx, cfg.Model.BackendURL),
	)

	if cfg.Progress.Backend == config.ProgressRedis {
		results = append(results, CheckRedis(ctx, cfg.Progress.RedisAddr, cfg.Progress.RedisPassword, cfg.Progress.RedisDB))
	}

	return results
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"unmark/internal/config"
	"unmark/internal/deps"
	"unmark/internal/inference"
)

// CheckModelBackend verifies that the inference server answers its health endpoint.
func CheckModelBackend(ctx context.Context, baseURL string) Result {
	const name = "Model backend"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	backend := inference.NewHTTPBackend(base, 5*time.Second)
	if err := backend.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetError(base, err)}
	}
	return Result{Name: name, Passed: true, Detail: base}
}

// CheckMasks verifies that the mask directory holds a usable mask set and
// that the default watermark type is one of them.
func CheckMasks(dir, defaultType string) Result {
	const name = "Watermark masks"

	types, err := inference.WatermarkTypes(dir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dir, err)}
	}
	if len(types) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no mask pairs found)", dir)}
	}
	if defaultType != "" && !slices.Contains(types, defaultType) {
		return Result{Name: name, Detail: fmt.Sprintf("default type %q missing (have %s)", defaultType, strings.Join(types, ", "))}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(types, ", ")}
}

// CheckRedis verifies that the redis progress backend is reachable.
func CheckRedis(ctx context.Context, addr, password string, db int) Result {
	const name = "Redis"

	if strings.TrimSpace(addr) == "" {
		return Result{Name: name, Detail: "missing address"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	defer client.Close()
	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: summarizeNetError(addr, err)}
	}
	return Result{Name: name, Passed: true, Detail: addr}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the video pipeline runs.
// Both the daemon and the doctor command use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckMediaTools(cfg.Video.FFmpegBinary, cfg.Video.FFprobeBinary)
}

func summarizeNetError(target string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s (health check timed out)", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("%s (health check timed out)", target)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("%s (unreachable: %v)", target, opErr.Err)
	}
	return fmt.Sprintf("%s (%v)", target, err)
}

package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"unmark/internal/config"
	"unmark/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckModelBackend_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckModelBackend(context.Background(), srv.URL)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckModelBackend_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := CheckModelBackend(context.Background(), srv.URL)
	if result.Passed {
		t.Fatal("expected failure for unhealthy backend")
	}
}

func TestCheckModelBackend_MissingURL(t *testing.T) {
	result := CheckModelBackend(context.Background(), " ")
	if result.Passed || result.Detail != "missing url" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestCheckMasks(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "istock"), 0o755); err != nil {
		t.Fatal(err)
	}

	if r := CheckMasks(dir, "istock"); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	if r := CheckMasks(dir, "shutterstock"); r.Passed || !strings.Contains(r.Detail, "shutterstock") {
		t.Fatalf("expected missing default type, got %#v", r)
	}
	if r := CheckMasks(t.TempDir(), "istock"); r.Passed {
		t.Fatal("expected failure for empty mask dir")
	}
	if r := CheckMasks(filepath.Join(dir, "absent"), ""); r.Passed {
		t.Fatal("expected failure for missing mask dir")
	}
}

func TestCheckRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	if r := CheckRedis(context.Background(), addr, "", 0); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	mr.Close()
	if r := CheckRedis(context.Background(), addr, "", 0); r.Passed {
		t.Fatal("expected failure after redis closed")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_IncludesRedisOnlyWhenSelected(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	names := func(results []Result) []string {
		var out []string
		for _, r := range results {
			out = append(out, r.Name)
		}
		return out
	}

	results := RunAll(context.Background(), cfg)
	for _, name := range names(results) {
		if name == "Redis" {
			t.Fatal("redis checked while sqlite backend selected")
		}
	}
	if len(Failures(results)) == 0 {
		t.Fatal("expected unreachable backend and missing masks to fail")
	}

	mr := miniredis.RunT(t)
	cfg.Progress.Backend = config.ProgressRedis
	cfg.Progress.RedisAddr = mr.Addr()
	results = RunAll(context.Background(), cfg)
	found := false
	for _, r := range results {
		if r.Name == "Redis" {
			found = true
			if !r.Passed {
				t.Fatalf("expected redis pass, got %s", r.Detail)
			}
		}
		if strings.HasSuffix(r.Name, "directory") && !r.Passed {
			t.Fatalf("expected %s to pass, got %s", r.Name, r.Detail)
		}
	}
	if !found {
		t.Fatal("expected redis check when redis backend selected")
	}
}

func TestResultLine(t *testing.T) {
	if got := (Result{Name: "FFmpeg", Passed: true, Detail: "/usr/bin/ffmpeg"}).Line(); got != "[ok] FFmpeg: /usr/bin/ffmpeg" {
		t.Fatalf("unexpected line %q", got)
	}
	if got := (Result{Name: "Redis"}).Line(); got != "[FAIL] Redis" {
		t.Fatalf("unexpected line %q", got)
	}
}

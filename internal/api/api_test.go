package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"unmark/internal/api"
	"unmark/internal/queue"
)

func TestFromTask(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	done := api.FromTask(&queue.Task{ID: "abc", Kind: queue.KindVideo, Status: queue.StatusCompleted, CreatedAt: created})
	if done.DownloadURL != "/api/v1/download-video/abc" {
		t.Fatalf("unexpected download url %q", done.DownloadURL)
	}
	if done.CreatedAt != "2026-03-01T12:00:00.000Z" || done.UpdatedAt != "" {
		t.Fatalf("unexpected timestamps %q %q", done.CreatedAt, done.UpdatedAt)
	}

	failed := api.FromTask(&queue.Task{ID: "def", Kind: queue.KindImage, Status: queue.StatusFailed, ErrorMessage: "boom"})
	if failed.DownloadURL != "" || failed.ErrorMessage != "boom" {
		t.Fatalf("unexpected failed task %+v", failed)
	}
	if (api.FromTask(nil) != api.Task{}) {
		t.Fatal("nil task should convert to zero value")
	}
}

func TestClientUploadAndErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.PathRemove, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "photo.png" || string(data) != "pixels" || r.FormValue("watermark_type") != "getty" {
			t.Errorf("unexpected upload %s %q %q", header.Filename, data, r.FormValue("watermark_type"))
		}
		_ = json.NewEncoder(w).Encode(api.RemoveResponse{Success: true, TaskID: "t1", DownloadURL: api.PathDownload + "t1"})
	})
	mux.HandleFunc("GET "+api.PathDownload+"t1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("result"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(src, []byte("pixels"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := api.NewClient(server.URL, "secret", time.Second)
	resp, err := client.RemoveWatermark(context.Background(), src, "getty")
	if err != nil || resp.TaskID != "t1" {
		t.Fatalf("RemoveWatermark = %+v, %v", resp, err)
	}
	dest := filepath.Join(dir, "out", "result.png")
	if err := client.Download(context.Background(), resp.DownloadURL, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got, _ := os.ReadFile(dest); string(got) != "result" {
		t.Fatalf("unexpected download %q", got)
	}

	if err := client.Download(context.Background(), api.PathDownload+"missing", dest); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	anonymous := api.NewClient(server.URL, "", time.Second)
	if _, err := anonymous.RemoveWatermark(context.Background(), src, ""); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

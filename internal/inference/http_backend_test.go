package inference_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unmark/internal/inference"
)

func TestEncodeDecodeData(t *testing.T) {
	values := []float32{-1, 0, 0.5, 1, 3.25}
	decoded, err := inference.DecodeData(inference.EncodeData(values))
	if err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("value %d: got %v want %v", i, decoded[i], values[i])
		}
	}
	if _, err := inference.DecodeData("AAA="); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestHTTPBackendLoadAndInfer(t *testing.T) {
	var loadedDir string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/load", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		loadedDir = body["checkpoint_dir"]
		_ = json.NewEncoder(w).Encode(map[string]any{"loaded": []string{"conv1"}, "missing": []string{"conv2"}})
	})
	mux.HandleFunc("POST /v1/infer", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Shape []int  `json:"shape"`
			Data  string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := inference.DecodeData(body.Data)
		// echo the left half back as the reconstruction
		h, w2 := body.Shape[1], body.Shape[2]
		out := make([]float32, 0, h*w2/2*3)
		for y := 0; y < h; y++ {
			row := data[y*w2*3 : y*w2*3+w2/2*3]
			out = append(out, row...)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"shape": []int{1, h, w2 / 2, 3}, "data": inference.EncodeData(out)})
	})
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	backend := inference.NewHTTPBackend(server.URL+"/", time.Second)
	ctx := context.Background()
	report, err := backend.Load(ctx, "/models/ca")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loadedDir != "/models/ca" || len(report.Loaded) != 1 || len(report.Missing) != 1 {
		t.Fatalf("unexpected load: dir=%q report=%+v", loadedDir, report)
	}

	in := inference.NewTensor(1, 8, 16, 3)
	in.Data[0] = 0.25
	out, err := backend.Infer(ctx, in)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if out.Shape[2] != 8 || out.Data[0] != 0.25 {
		t.Fatalf("unexpected output: shape=%v first=%v", out.Shape, out.Data[0])
	}
	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestHTTPBackendReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "graph not built", http.StatusInternalServerError)
	}))
	defer server.Close()

	backend := inference.NewHTTPBackend(server.URL, time.Second)
	if _, err := backend.Infer(context.Background(), inference.NewTensor(1, 8, 16, 3)); err == nil {
		t.Fatal("expected error from failing server")
	}
	if err := backend.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}

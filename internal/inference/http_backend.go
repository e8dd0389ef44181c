package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// HTTPBackend talks to an inference server that hosts the inpainting graph.
//
//	POST /v1/load  {"checkpoint_dir": "..."}       -> {"loaded": [...], "missing": [...]}
//	POST /v1/infer {"shape": [...], "data": "..."} -> {"shape": [...], "data": "..."}
//
// data is base64 of little-endian float32 values.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a client for baseURL with a per-request timeout.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type wireTensor struct {
	Shape []int  `json:"shape"`
	Data  string `json:"data"`
}

// Load asks the server to restore the checkpoint.
func (b *HTTPBackend) Load(ctx context.Context, checkpointDir string) (LoadReport, error) {
	var report LoadReport
	err := b.post(ctx, "/v1/load", map[string]string{"checkpoint_dir": checkpointDir}, &report)
	return report, err
}

// Infer sends one tensor to the server.
func (b *HTTPBackend) Infer(ctx context.Context, in Tensor) (Tensor, error) {
	var out wireTensor
	if err := b.post(ctx, "/v1/infer", wireTensor{Shape: in.Shape, Data: EncodeData(in.Data)}, &out); err != nil {
		return Tensor{}, err
	}
	data, err := DecodeData(out.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("decode inference output: %w", err)
	}
	return Tensor{Shape: out.Shape, Data: data}, nil
}

// Ping checks that the server answers its health endpoint.
func (b *HTTPBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model backend health returned %s", resp.Status)
	}
	return nil
}

func (b *HTTPBackend) post(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("model backend %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model backend %s returned %s: %s", path, resp.Status, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// EncodeData packs float32 values as base64 little-endian bytes.
func EncodeData(values []float32) string {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeData reverses EncodeData.
func DecodeData(encoded string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of 4", len(buf))
	}
	values := make([]float32, len(buf)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return values, nil
}

var _ Backend = (*HTTPBackend)(nil)

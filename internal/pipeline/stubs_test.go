package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"unmark/internal/inference"
	"unmark/internal/media/ffmpeg"
	"unmark/internal/media/ffprobe"
	"unmark/internal/progress"
	"unmark/internal/testsupport"
)

// sizePreprocessor emits a zero tensor matching the image size.
type sizePreprocessor struct {
	panics bool
}

func (p sizePreprocessor) Preprocess(img image.Image, watermarkType string) (inference.Tensor, error) {
	if p.panics {
		panic("preprocessor bug")
	}
	if watermarkType == "unsupported" {
		return inference.Tensor{}, inference.ErrUnsupported
	}
	b := img.Bounds()
	return inference.NewTensor(1, b.Dy(), b.Dx(), 3), nil
}

// framePreprocessor reports selected frames, by call order, as unsupported.
type framePreprocessor struct {
	calls  atomic.Int32
	failAt map[int]bool
}

func (p *framePreprocessor) Preprocess(img image.Image, watermarkType string) (inference.Tensor, error) {
	call := int(p.calls.Add(1)) - 1
	if p.failAt[call] {
		return inference.Tensor{}, inference.ErrUnsupported
	}
	return sizePreprocessor{}.Preprocess(img, watermarkType)
}

// stubModel echoes its input and fails on selected call indexes.
type stubModel struct {
	calls  atomic.Int32
	failAt map[int]bool
	err    error
}

func (m *stubModel) Infer(_ context.Context, in inference.Tensor) (inference.Tensor, error) {
	call := int(m.calls.Add(1)) - 1
	if m.err != nil || m.failAt[call] {
		return inference.Tensor{}, errors.Join(errors.New("stub inference failure"), m.err)
	}
	return inference.Tensor{Shape: in.Shape, Data: append([]float32(nil), in.Data...)}, nil
}

type stubTool struct {
	t           *testing.T
	result      ffprobe.Result
	inspectErr  error
	frames      int
	counted     int
	assembleErr error

	extractCalls int
	countCalls   int
	source       [][]byte
	assembled    [][]byte
	request      ffmpeg.AssembleRequest
}

func (s *stubTool) Inspect(context.Context, string) (ffprobe.Result, error) {
	return s.result, s.inspectErr
}

func (s *stubTool) CountFrames(context.Context, string) (int, error) {
	s.countCalls++
	if s.counted == 0 {
		return 0, errors.New("no frames counted")
	}
	return s.counted, nil
}

func (s *stubTool) ExtractFrames(_ context.Context, _ string, dir string) ([]string, error) {
	s.extractCalls++
	paths := make([]string, 0, s.frames)
	for i := 0; i < s.frames; i++ {
		path := ffmpeg.FramePath(dir, i)
		testsupport.WriteGradient(s.t, path, 16, 12, uint8(i*3+1))
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		s.source = append(s.source, data)
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *stubTool) Assemble(_ context.Context, req ffmpeg.AssembleRequest) error {
	s.request = req
	if s.assembleErr != nil {
		return s.assembleErr
	}
	frames, err := ffmpeg.ListFrames(req.FramesDir)
	if err != nil {
		return err
	}
	for _, path := range frames {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		s.assembled = append(s.assembled, data)
	}
	return os.WriteFile(req.Output, []byte("mp4"), 0o644)
}

func (s *stubTool) frameIdentical(i int) bool {
	return bytes.Equal(s.source[i], s.assembled[i])
}

type recordingStore struct {
	mu      sync.Mutex
	records []progress.Record
}

func (r *recordingStore) Write(_ context.Context, taskID string, value float64, status progress.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, progress.Record{TaskID: taskID, Progress: value, Status: status})
	return nil
}

func (r *recordingStore) Read(_ context.Context, taskID string) (progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].TaskID == taskID {
			return r.records[i], nil
		}
	}
	return progress.NotFound(taskID), nil
}

func (r *recordingStore) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Progress
	}
	return out
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = filepath.Join(dir, e.Name())
		}
		t.Fatalf("expected %s to be empty, found %v", dir, names)
	}
}

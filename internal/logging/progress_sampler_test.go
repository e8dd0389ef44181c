package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(0)
	if s.step != 10 {
		t.Fatalf("step = %v, want 10", s.step)
	}

	steps := []struct {
		fraction float64
		stage    string
		want     bool
	}{
		{0, "inferring", true},
		{0.05, "inferring", false},
		{0.1, "inferring", true},
		{0.15, "inferring", false},
		{0.5, "inferring", true},
		{0.5, "reassembling", true},
		{0.55, "reassembling", false},
		{1.2, "reassembling", true},
		{1.0, "reassembling", false},
		{-1, "reassembling", false},
		{-1, "done", true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.fraction, step.stage); got != step.want {
			t.Fatalf("step %d (%v, %s): got %v want %v", i, step.fraction, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(0.5, "stage") {
		t.Fatal("nil sampler should always log")
	}
}

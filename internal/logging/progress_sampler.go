package logging

import "strings"

// ProgressSampler decides which progress updates deserve a log line: the
// first update of each stage and the first update in each new percent
// bucket.
type ProgressSampler struct {
	step   int
	stage  string
	bucket int
}

// NewProgressSampler returns a sampler with buckets of stepPercent
// percentage points (10 when stepPercent is not positive).
func NewProgressSampler(stepPercent float64) *ProgressSampler {
	step := int(stepPercent)
	if step <= 0 {
		step = 10
	}
	return &ProgressSampler{step: step, bucket: -1}
}

// ShouldLog reports whether an update at fraction (0 to 1) within stage
// should be logged. A negative fraction is unknown progress and only a
// stage change emits. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(fraction float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage, s.bucket = stage, -1
		emit = true
	}
	if fraction < 0 {
		return emit
	}
	if b := int(min(fraction, 1)*100) / s.step; b > s.bucket {
		s.bucket = b
		emit = true
	}
	return emit
}

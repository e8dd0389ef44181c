package services_test

import (
	"context"
	"testing"

	"unmark/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := services.WithRequestID(
		services.WithStage(
			services.WithTaskID(context.Background(), "3f1c"),
			"probing"),
		"req-123")

	tests := []struct {
		name string
		get  func(context.Context) (string, bool)
		want string
	}{
		{"task", services.TaskIDFromContext, "3f1c"},
		{"stage", services.StageFromContext, "probing"},
		{"request", services.RequestIDFromContext, "req-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := tt.get(ctx); !ok || got != tt.want {
				t.Fatalf("got %q %v, want %q", got, ok, tt.want)
			}
			if _, ok := tt.get(context.Background()); ok {
				t.Fatal("empty context must not carry a value")
			}
		})
	}
}

func TestBlankValuesLeaveContextUnchanged(t *testing.T) {
	base := context.Background()
	if services.WithTaskID(base, "") != base || services.WithStage(base, "") != base || services.WithRequestID(base, "") != base {
		t.Fatal("blank values must return the same context")
	}
}

func TestStageOverridesParent(t *testing.T) {
	ctx := services.WithStage(services.WithStage(context.Background(), "probing"), "reassembling")
	if stage, _ := services.StageFromContext(ctx); stage != "reassembling" {
		t.Fatalf("unexpected stage %q", stage)
	}
}

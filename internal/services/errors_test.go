package services

import (
	"context"
	"errors"
	"testing"
)

func TestWrapTagsSentinel(t *testing.T) {
	err := Wrap(ErrExternalTool, "separation", "run demucs", "exit status 1", nil)
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if got := Details(err); got != "separation: run demucs: exit status 1" {
		t.Fatalf("unexpected details: %q", got)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "", "", "", errors.New("boom"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrStorage, "artifacts", "put", "", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(Wrap(ErrTimeout, "transcription", "", "deadline expired", nil)) {
		t.Fatal("tagged timeout not recognized")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatal("context deadline not recognized")
	}
	if IsTimeout(errors.New("other")) {
		t.Fatal("plain error misclassified as timeout")
	}
}

func TestDetailsOnPlainError(t *testing.T) {
	if got := Details(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected details: %q", got)
	}
	if got := Details(nil); got != "" {
		t.Fatalf("expected empty details for nil, got %q", got)
	}
}

func TestContextAnnotations(t *testing.T) {
	ctx := context.Background()
	ctx = WithJobID(ctx, "job-1")
	ctx = WithStage(ctx, "notation")
	ctx = WithInstrument(ctx, "drums")

	if id, ok := JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("job id not recovered: %q %v", id, ok)
	}
	if stage, ok := StageFromContext(ctx); !ok || stage != "notation" {
		t.Fatalf("stage not recovered: %q %v", stage, ok)
	}
	if instrument, ok := InstrumentFromContext(ctx); !ok || instrument != "drums" {
		t.Fatalf("instrument not recovered: %q %v", instrument, ok)
	}
	if _, ok := JobIDFromContext(context.Background()); ok {
		t.Fatal("empty context should not carry a job id")
	}
}

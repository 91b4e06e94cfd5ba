package deps_test

import (
	"testing"

	"soundsketch/internal/deps"
	"soundsketch/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("demucs"))
	cfg.Transcription.Command = "definitely-not-installed"
	cfg.Analysis.PythonCommand = ""

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3", len(statuses))
	}

	if !deps.Available(statuses, "separation") {
		t.Fatal("stubbed demucs should be available")
	}
	if deps.Available(statuses, "transcription") {
		t.Fatal("missing binary reported available")
	}
	if deps.Available(statuses, "analysis") {
		t.Fatal("unconfigured interpreter reported available")
	}

	for _, status := range statuses {
		if !status.Available && status.Detail == "" {
			t.Errorf("status %s missing detail", status.Name)
		}
	}
}

func TestMissingRequired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Separation.Command = "no-such-tool"
	cfg.Transcription.Command = "also-no-such-tool"
	cfg.Analysis.PythonCommand = "missing-python"

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	missing := deps.MissingRequired(statuses)
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want the two required tools", missing)
	}
	for _, name := range missing {
		if name == "analysis" {
			t.Fatal("optional dependency reported as required")
		}
	}
}

func TestAvailableUnknownName(t *testing.T) {
	if deps.Available(nil, "anything") {
		t.Fatal("unknown name should not be available")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Server.APIBind != defaultAPIBind {
		t.Fatalf("expected default api_bind, got %q", cfg.Server.APIBind)
	}
	if cfg.Workflow.WorkerCount != defaultWorkerCount {
		t.Fatalf("expected default worker_count, got %d", cfg.Workflow.WorkerCount)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[server]
api_bind = "127.0.0.1:9999"
max_upload_mb = 5
allowed_extensions = ["wav", ".FLAC"]

[workflow]
worker_count = 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Server.APIBind != "127.0.0.1:9999" {
		t.Fatalf("override not applied: %q", cfg.Server.APIBind)
	}
	if cfg.Workflow.WorkerCount != 4 {
		t.Fatalf("override not applied: %d", cfg.Workflow.WorkerCount)
	}
	// Extensions are normalized to lowercase dotted form.
	if cfg.AllowsExtension(".WAV") != true || cfg.AllowsExtension(".flac") != true {
		t.Fatalf("extension normalization failed: %v", cfg.Server.AllowedExtensions)
	}
	if cfg.AllowsExtension(".mp3") {
		t.Fatal("mp3 should not be allowed after override")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		snippet string
		want    string
	}{
		{"zero workers", "[workflow]\nworker_count = 0\n", "worker_count"},
		{"bad log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"empty separation command", "[separation]\ncommand = \"\"\n", "separation.command"},
		{"zero upload limit", "[server]\nmax_upload_mb = 0\n", "max_upload_mb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.snippet), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := Default()
	cfg.Server.MaxUploadMB = 2
	if got := cfg.MaxUploadBytes(); got != 2*1024*1024 {
		t.Fatalf("expected 2MiB, got %d", got)
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[workflow]") {
		t.Fatal("sample config missing workflow section")
	}
}

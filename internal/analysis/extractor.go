package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"soundsketch/internal/config"
	"soundsketch/internal/services"
)

// Extractor produces a feature document for an audio file.
type Extractor interface {
	Extract(ctx context.Context, audioPath string) (*Features, error)
}

// ScriptExtractor shells out to the analysis script and parses the JSON it
// prints on stdout.
type ScriptExtractor struct {
	python string
	script string
}

// NewScriptExtractor builds the script-backed extractor from configuration.
func NewScriptExtractor(cfg *config.Config) *ScriptExtractor {
	return &ScriptExtractor{
		python: cfg.Analysis.PythonCommand,
		script: cfg.Analysis.ScriptPath,
	}
}

// Extract runs the script against one audio file. Any interpreter failure or
// malformed output surfaces as an error; callers degrade rather than fail
// the job.
func (e *ScriptExtractor) Extract(ctx context.Context, audioPath string) (*Features, error) {
	if strings.TrimSpace(e.script) == "" {
		return nil, services.Wrap(services.ErrValidation, "analysis", "extract", "no analysis script configured", nil)
	}

	cmd := exec.CommandContext(ctx, e.python, e.script, audioPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "analysis", "extract", "analysis interrupted", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "extract", detail, err)
	}

	var features Features
	if err := json.Unmarshal(stdout.Bytes(), &features); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "extract", "malformed analysis output", err)
	}
	if features.Filename == "" {
		features.Filename = filepath.Base(audioPath)
	}
	return &features, nil
}

// MetadataExtractor is the degraded fallback used when no interpreter is
// available: it reports only what the filesystem knows.
type MetadataExtractor struct{}

// Extract stats the file and returns a degraded feature document.
func (MetadataExtractor) Extract(ctx context.Context, audioPath string) (*Features, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio file: %w", err)
	}
	return &Features{
		Filename:  filepath.Base(audioPath),
		SizeBytes: info.Size(),
		Extension: strings.ToLower(filepath.Ext(audioPath)),
		Degraded:  true,
	}, nil
}

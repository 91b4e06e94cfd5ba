// Package demucs shells out to the demucs source separation tool and
// collects the per-instrument stems it produces.
package demucs

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/services"
)

var stemExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
}

// Client invokes the demucs CLI.
type Client struct {
	command string
	model   string
	logger  *slog.Logger
}

// New builds a demucs client from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		command: cfg.Separation.Command,
		model:   cfg.Separation.Model,
		logger:  logging.NewComponentLogger(logger, "demucs"),
	}
}

// Separate runs demucs against one source file. Stems land in a scratch
// directory owned by the returned StemSet; the caller removes it after
// persisting.
func (c *Client) Separate(ctx context.Context, sourcePath string) (*pipeline.StemSet, error) {
	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "separation", "resolve source", "", err)
	}

	scratch, err := os.MkdirTemp("", "soundsketch-stems-*")
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "separation", "create scratch dir", "", err)
	}

	args := []string{"-n", c.model, "-o", scratch, "--filename", "{stem}.{ext}", absSource}
	log := logging.WithContext(ctx, c.logger)
	log.Info("running demucs", logging.String("model", c.model), logging.String("source", absSource))

	cmd := exec.CommandContext(ctx, c.command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.RemoveAll(scratch)
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "separation", "run demucs", "interrupted", ctx.Err())
		}
		return nil, services.Wrap(services.ErrExternalTool, "separation", "run demucs", tail(output), err)
	}

	stems, err := collectStems(scratch)
	if err != nil {
		_ = os.RemoveAll(scratch)
		return nil, err
	}
	log.Info("demucs finished", logging.Int("stems", len(stems)))
	return &pipeline.StemSet{Files: stems, Dir: scratch}, nil
}

// collectStems walks the demucs output tree (<scratch>/<model>/<track>/...)
// and maps each audio file's base name to its path.
func collectStems(root string) (map[string]string, error) {
	stems := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if _, ok := stemExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		instrument := strings.TrimSuffix(name, filepath.Ext(name))
		stems[strings.ToLower(instrument)] = path
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "separation", "collect stems", "", err)
	}
	if len(stems) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "separation", "collect stems", "no stems in output directory", nil)
	}
	return stems, nil
}

// tail keeps the last part of tool output for the error message; demucs logs
// its progress bar first and the failure reason last.
func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) <= 400 {
		return text
	}
	return "..." + text[len(text)-400:]
}

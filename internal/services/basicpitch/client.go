// Package basicpitch shells out to the basic-pitch transcription CLI and
// parses the note-event CSV it emits.
package basicpitch

import (
	"context"
	"encoding/csv"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/services"
)

// Client invokes the basic-pitch CLI.
type Client struct {
	command string
	logger  *slog.Logger
}

// New builds a basic-pitch client from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		command: cfg.Transcription.Command,
		logger:  logging.NewComponentLogger(logger, "basic-pitch"),
	}
}

// Transcribe runs basic-pitch against one stem and returns its note events.
func (c *Client) Transcribe(ctx context.Context, stemPath string) ([]pipeline.NoteEvent, error) {
	absStem, err := filepath.Abs(stemPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcription", "resolve stem", "", err)
	}

	outDir, err := os.MkdirTemp("", "soundsketch-notes-*")
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "transcription", "create scratch dir", "", err)
	}
	defer os.RemoveAll(outDir)

	log := logging.WithContext(ctx, c.logger)
	log.Info("running basic-pitch", logging.String("stem", absStem))

	cmd := exec.CommandContext(ctx, c.command, outDir, absStem, "--save-note-events")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "transcription", "run basic-pitch", "interrupted", ctx.Err())
		}
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "run basic-pitch", strings.TrimSpace(string(output)), err)
	}

	csvPath, err := findNoteEventsCSV(outDir)
	if err != nil {
		return nil, err
	}
	notes, err := parseNoteEvents(csvPath)
	if err != nil {
		return nil, err
	}
	log.Info("basic-pitch finished", logging.Int("notes", len(notes)))
	return notes, nil
}

func findNoteEventsCSV(dir string) (string, error) {
	var csvPath string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			csvPath = path
		}
		return nil
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcription", "collect output", "", err)
	}
	if csvPath == "" {
		return "", services.Wrap(services.ErrExternalTool, "transcription", "collect output", "no note events file produced", nil)
	}
	return csvPath, nil
}

// parseNoteEvents reads the basic-pitch CSV: a header naming at least
// start_time_s, end_time_s, pitch_midi, and velocity, then one row per note.
// Unknown columns are ignored; malformed rows are skipped.
func parseNoteEvents(path string) ([]pipeline.NoteEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "open note events", "", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "parse note events", "", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"start_time_s", "end_time_s", "pitch_midi"} {
		if _, ok := columns[required]; !ok {
			return nil, services.Wrap(services.ErrExternalTool, "transcription", "parse note events", "missing column "+required, nil)
		}
	}

	var notes []pipeline.NoteEvent
	for _, row := range rows[1:] {
		start, err1 := field(row, columns, "start_time_s")
		end, err2 := field(row, columns, "end_time_s")
		pitch, err3 := field(row, columns, "pitch_midi")
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		note := pipeline.NoteEvent{
			Pitch:    int(pitch),
			Onset:    start,
			Duration: end - start,
			Velocity: 80,
		}
		if velocity, err := field(row, columns, "velocity"); err == nil {
			note.Velocity = int(velocity)
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func field(row []string, columns map[string]int, name string) (float64, error) {
	index, ok := columns[name]
	if !ok || index >= len(row) {
		return 0, os.ErrNotExist
	}
	return strconv.ParseFloat(strings.TrimSpace(row[index]), 64)
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"soundsketch/internal/api"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// colorizeStatus decorates a job status for terminal output.
func colorizeStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	var color string
	switch status {
	case "completed":
		color = ansiGreen
	case "completed_with_errors", "processing":
		color = ansiYellow
	case "failed":
		color = ansiRed
	case "queued":
		color = ansiBlue
	}
	if color == "" {
		return status
	}
	return color + status + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// formatTimestamp shortens an RFC3339 wire timestamp for table display.
func formatTimestamp(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTimestamp(value *string) string {
	if value == nil {
		return "-"
	}
	return formatTimestamp(*value)
}

// formatInstruments lists the instrument labels of a file set.
func formatInstruments(refs []api.FileRef) string {
	if len(refs) == 0 {
		return "-"
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Instrument)
	}
	return strings.Join(names, ", ")
}

// printJobRecord renders the full record of one job.
func printJobRecord(w io.Writer, record *api.JobRecord, colorize bool) {
	fmt.Fprintf(w, "Job:        %s\n", record.JobID)
	fmt.Fprintf(w, "Status:     %s\n", colorizeStatus(record.Status, colorize))
	fmt.Fprintf(w, "Created:    %s\n", formatTimestamp(record.CreatedAt))
	fmt.Fprintf(w, "Completed:  %s\n", formatOptionalTimestamp(record.CompletedAt))
	fmt.Fprintf(w, "MusicXML:   %s\n", formatInstruments(record.MusicXMLFiles))
	fmt.Fprintf(w, "MIDI:       %s\n", formatInstruments(record.MIDIFiles))
	if len(record.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, message := range record.Errors {
			fmt.Fprintf(w, "  - %s\n", message)
		}
	}
}

package pipeline

import (
	"context"

	"soundsketch/internal/notation"
)

// NoteEvent is the transcription unit passed between stages.
type NoteEvent = notation.NoteEvent

// StemSet holds the per-instrument stem files produced by separation. Dir,
// when set, is the scratch directory owning the files; the orchestrator
// removes it once the stems are persisted.
type StemSet struct {
	Files map[string]string
	Dir   string
}

// Separator splits a mixed audio file into per-instrument stems.
type Separator interface {
	Separate(ctx context.Context, sourcePath string) (*StemSet, error)
}

// Transcriber converts one stem into a note sequence.
type Transcriber interface {
	Transcribe(ctx context.Context, stemPath string) ([]NoteEvent, error)
}

// Notator renders a note sequence into the MusicXML and MIDI encodings.
type Notator interface {
	Render(ctx context.Context, instrument string, notes []NoteEvent) (musicXML []byte, midi []byte, err error)
}

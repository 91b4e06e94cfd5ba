package notation

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NoteEvent is one detected note: MIDI pitch number, onset and duration in
// seconds, and a MIDI velocity.
type NoteEvent struct {
	Pitch    int     `json:"pitch"`
	Onset    float64 `json:"onset"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
}

// General MIDI program numbers per stem. Drums stay on program 0; proper
// percussion would need channel 10, which downstream notation tools handle
// poorly.
var instrumentPrograms = map[string]int{
	"vocals":  52, // Choir Aahs
	"drums":   0,
	"bass":    33, // Acoustic Bass
	"other":   0,
	"piano":   0,
	"guitar":  24,
	"strings": 48,
}

// InstrumentProgram maps a stem name to its General MIDI program number.
// Unknown instruments fall back to acoustic grand piano.
func InstrumentProgram(instrument string) int {
	return instrumentPrograms[strings.ToLower(strings.TrimSpace(instrument))]
}

var titleCaser = cases.Title(language.English)

// PartTitle returns the human-readable part name for an instrument, e.g.
// "Vocals Part".
func PartTitle(instrument string) string {
	name := strings.TrimSpace(instrument)
	if name == "" {
		name = "unknown"
	}
	return titleCaser.String(name) + " Part"
}

// placeholderNote stands in when transcription found nothing: a single
// one-second middle C, so every instrument still renders to valid output.
var placeholderNote = NoteEvent{Pitch: 60, Onset: 0, Duration: 1, Velocity: 80}

// prepare sorts notes by onset, clamps values into MIDI range, and
// substitutes the placeholder when the sequence is empty.
func prepare(notes []NoteEvent) []NoteEvent {
	cleaned := make([]NoteEvent, 0, len(notes))
	for _, n := range notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			continue
		}
		if n.Duration <= 0 {
			continue
		}
		if n.Onset < 0 {
			n.Onset = 0
		}
		if n.Velocity <= 0 {
			n.Velocity = 80
		} else if n.Velocity > 127 {
			n.Velocity = 127
		}
		cleaned = append(cleaned, n)
	}
	if len(cleaned) == 0 {
		return []NoteEvent{placeholderNote}
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].Onset < cleaned[j].Onset
	})
	return cleaned
}

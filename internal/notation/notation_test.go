package notation

import "testing"

func TestInstrumentProgram(t *testing.T) {
	cases := []struct {
		instrument string
		want       int
	}{
		{"vocals", 52},
		{"Vocals", 52},
		{" bass ", 33},
		{"guitar", 24},
		{"strings", 48},
		{"drums", 0},
		{"theremin", 0},
	}
	for _, tc := range cases {
		if got := InstrumentProgram(tc.instrument); got != tc.want {
			t.Errorf("InstrumentProgram(%q) = %d, want %d", tc.instrument, got, tc.want)
		}
	}
}

func TestPartTitle(t *testing.T) {
	if got := PartTitle("vocals"); got != "Vocals Part" {
		t.Fatalf("PartTitle = %q", got)
	}
	if got := PartTitle(""); got != "Unknown Part" {
		t.Fatalf("PartTitle on empty = %q", got)
	}
}

func TestPrepareSubstitutesPlaceholder(t *testing.T) {
	prepared := prepare(nil)
	if len(prepared) != 1 {
		t.Fatalf("expected placeholder, got %v", prepared)
	}
	if prepared[0].Pitch != 60 || prepared[0].Duration != 1 {
		t.Fatalf("unexpected placeholder: %#v", prepared[0])
	}

	// Out-of-range pitches and zero durations are dropped entirely, which
	// also triggers the placeholder.
	prepared = prepare([]NoteEvent{{Pitch: 200, Duration: 1}, {Pitch: 60, Duration: 0}})
	if len(prepared) != 1 || prepared[0].Pitch != 60 || prepared[0].Velocity != 80 {
		t.Fatalf("expected placeholder for unusable input, got %v", prepared)
	}
}

func TestPrepareSortsAndClamps(t *testing.T) {
	prepared := prepare([]NoteEvent{
		{Pitch: 64, Onset: 2, Duration: 0.5, Velocity: 300},
		{Pitch: 60, Onset: 0.5, Duration: 0.5, Velocity: 0},
		{Pitch: 62, Onset: -1, Duration: 0.5, Velocity: 90},
	})
	if len(prepared) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(prepared))
	}
	if prepared[0].Pitch != 62 || prepared[0].Onset != 0 {
		t.Fatalf("unexpected first note: %#v", prepared[0])
	}
	if prepared[1].Velocity != 80 {
		t.Fatalf("zero velocity not defaulted: %#v", prepared[1])
	}
	if prepared[2].Velocity != 127 {
		t.Fatalf("velocity not clamped: %#v", prepared[2])
	}
}

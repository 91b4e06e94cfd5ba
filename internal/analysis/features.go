package analysis

import (
	"encoding/json"
	"fmt"
)

// Features is the descriptive feature document for one audio file. Every
// field beyond the filename is optional: absence means the value could not
// be measured, and downstream consumers proceed without it.
type Features struct {
	Filename        string    `json:"filename"`
	SizeBytes       int64     `json:"size_bytes,omitempty"`
	Extension       string    `json:"extension,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	TempoBPM        *float64  `json:"tempo_bpm,omitempty"`
	BeatCount       *int      `json:"beat_count,omitempty"`
	ChromaMeans     []float64 `json:"chroma_means,omitempty"`

	// Degraded marks documents produced without signal analysis, when no
	// interpreter was available or the script failed.
	Degraded bool `json:"degraded,omitempty"`
}

// Encode renders the document as indented JSON for the analysis artifact.
func (f Features) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a stored feature document.
func Decode(data []byte) (*Features, error) {
	var features Features
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return &features, nil
}

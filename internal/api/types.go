package api

import (
	"time"

	"soundsketch/internal/jobs"
)

// dateTimeFormat is used for timestamps in API payloads.
const dateTimeFormat = time.RFC3339

// FileRef names one generated artifact for one instrument.
type FileRef struct {
	Instrument string `json:"instrument"`
	Path       string `json:"path"`
}

// JobRecord is the full wire representation of one conversion job.
type JobRecord struct {
	JobID         string    `json:"job_id"`
	Filename      string    `json:"filename"`
	Status        string    `json:"status"`
	CreatedAt     string    `json:"created_at"`
	CompletedAt   *string   `json:"completed_at"`
	MusicXMLFiles []FileRef `json:"musicxml_files"`
	MIDIFiles     []FileRef `json:"midi_files"`
	Errors        []string  `json:"errors"`
}

// SubmitResponse acknowledges an accepted upload.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobListResponse wraps most-recent-first job summaries.
type JobListResponse struct {
	Jobs  []JobRecord `json:"jobs"`
	Count int         `json:"count"`
}

// DeleteResponse acknowledges a removed job.
type DeleteResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse carries a human-readable failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromJob converts a job row into its wire representation. Nil slices become
// empty ones so consumers always see arrays.
func FromJob(job *jobs.Job) JobRecord {
	record := JobRecord{
		JobID:         job.ID,
		Filename:      job.Filename,
		Status:        string(job.Status),
		CreatedAt:     job.CreatedAt.UTC().Format(dateTimeFormat),
		MusicXMLFiles: fileRefs(job.MusicXMLFiles),
		MIDIFiles:     fileRefs(job.MIDIFiles),
		Errors:        make([]string, 0, len(job.Errors)),
	}
	if job.CompletedAt != nil {
		completed := job.CompletedAt.UTC().Format(dateTimeFormat)
		record.CompletedAt = &completed
	}
	record.Errors = append(record.Errors, job.Errors...)
	return record
}

func fileRefs(refs []jobs.FileRef) []FileRef {
	out := make([]FileRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, FileRef{Instrument: ref.Instrument, Path: ref.Path})
	}
	return out
}

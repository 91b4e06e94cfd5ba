package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"soundsketch/internal/jobs"
)

// recordFilename sits at the top of each job's artifact tree and snapshots
// the job record, so a lost database can be rebuilt from the output
// directory alone.
const recordFilename = "record.json"

// ErrRecordNotFound indicates a job directory carries no snapshot.
var ErrRecordNotFound = errors.New("job record not found")

// Record is the serialized snapshot of one job.
type Record struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	MusicXMLFiles []jobs.FileRef `json:"musicxml_files,omitempty"`
	MIDIFiles     []jobs.FileRef `json:"midi_files,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
}

// RecordFromJob converts a job row into its snapshot form.
func RecordFromJob(job *jobs.Job) Record {
	return Record{
		ID:            job.ID,
		Filename:      job.Filename,
		Status:        string(job.Status),
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.CompletedAt,
		MusicXMLFiles: job.MusicXMLFiles,
		MIDIFiles:     job.MIDIFiles,
		Errors:        job.Errors,
	}
}

// ToJob converts a snapshot back into a job row. Snapshots captured before a
// crash may still say processing; those are surfaced as failed since the
// worker that owned them is gone.
func (r Record) ToJob() (*jobs.Job, error) {
	status, ok := jobs.ParseStatus(r.Status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q in record for %s", r.Status, r.ID)
	}
	job := &jobs.Job{
		ID:            r.ID,
		Filename:      r.Filename,
		Status:        status,
		CreatedAt:     r.CreatedAt,
		CompletedAt:   r.CompletedAt,
		MusicXMLFiles: r.MusicXMLFiles,
		MIDIFiles:     r.MIDIFiles,
		Errors:        r.Errors,
	}
	if status == jobs.StatusProcessing || status == jobs.StatusQueued {
		now := time.Now().UTC()
		job.Status = jobs.StatusFailed
		job.CompletedAt = &now
		job.Errors = append(job.Errors, jobs.AbnormalTerminationReason)
	}
	return job, nil
}

// WriteRecord snapshots a job into its artifact tree.
func (s *Store) WriteRecord(job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	dir, err := s.JobDir(job.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir job dir: %w", err)
	}

	data, err := json.MarshalIndent(RecordFromJob(job), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	target := filepath.Join(dir, recordFilename)
	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

// ReadRecord loads the snapshot for one job directory.
func (s *Store) ReadRecord(jobID string) (*Record, error) {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, recordFilename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &record, nil
}

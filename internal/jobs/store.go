package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"soundsketch/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the jobs database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.OutputDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the location of the backing database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new queued job for an uploaded file.
func (s *Store) Create(ctx context.Context, id, filename string) (*Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("job id is empty")
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, filename, status, created_at) VALUES (?, ?, ?, ?)`,
		id,
		filename,
		StatusQueued,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a job by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Transition moves a job to the next status, enforcing the state machine with
// a guarded update. Outputs and error messages are persisted atomically with
// the status change; terminal transitions stamp completed_at.
func (s *Store) Transition(ctx context.Context, id string, next Status, outputs *Outputs, errMessages []string) (*Job, error) {
	allowedFrom := transitionsInto[next]
	if len(allowedFrom) == 0 {
		return nil, fmt.Errorf("%w: no transition into %s", ErrInvalidTransition, next)
	}

	var (
		musicxmlJSON = "[]"
		midiJSON     = "[]"
	)
	if outputs != nil {
		var err error
		if musicxmlJSON, err = encodeFileRefs(outputs.MusicXML); err != nil {
			return nil, fmt.Errorf("marshal musicxml refs: %w", err)
		}
		if midiJSON, err = encodeFileRefs(outputs.MIDI); err != nil {
			return nil, fmt.Errorf("marshal midi refs: %w", err)
		}
	}
	errorsJSON, err := encodeStrings(errMessages)
	if err != nil {
		return nil, fmt.Errorf("marshal errors: %w", err)
	}

	var completedAt any
	if next.IsTerminal() {
		completedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	placeholders := makePlaceholders(len(allowedFrom))
	args := make([]any, 0, len(allowedFrom)+5)
	args = append(args, next, completedAt, musicxmlJSON, midiJSON, errorsJSON, id)
	for _, from := range allowedFrom {
		args = append(args, from)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, completed_at = ?, musicxml_json = ?, midi_json = ?, errors_json = ?
         WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing job from a disallowed edge.
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
	}

	return s.Get(ctx, id)
}

// List returns jobs ordered newest first, optionally capped by limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var items []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

// ListByStatus returns jobs matching a status ordered by creation time.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	defer rows.Close()

	var items []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

// Delete removes a job record. In-flight jobs cannot be deleted; callers must
// wait for the worker to finish first.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND status != ?`, id, StatusProcessing)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return getErr
	}
	if current.Status == StatusProcessing {
		return ErrJobProcessing
	}
	// The job disappeared or changed between the delete and the lookup.
	return ErrNotFound
}

// FailAbandoned marks jobs left in processing as failed. Called once at daemon
// startup: a processing job with no worker attached died with the previous
// process.
func (s *Store) FailAbandoned(ctx context.Context, reason string) (int64, error) {
	if strings.TrimSpace(reason) == "" {
		reason = AbnormalTerminationReason
	}
	errorsJSON, err := encodeStrings([]string{reason})
	if err != nil {
		return 0, fmt.Errorf("marshal abandon reason: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, errors_json = ? WHERE status = ?`,
		StatusFailed,
		time.Now().UTC().Format(time.RFC3339Nano),
		errorsJSON,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail abandoned jobs: %w", err)
	}
	return res.RowsAffected()
}

// Restore upserts a job record reconstructed from an artifact snapshot. Used
// when the database is rebuilt from the output directory.
func (s *Store) Restore(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	musicxmlJSON, err := encodeFileRefs(job.MusicXMLFiles)
	if err != nil {
		return fmt.Errorf("marshal musicxml refs: %w", err)
	}
	midiJSON, err := encodeFileRefs(job.MIDIFiles)
	if err != nil {
		return fmt.Errorf("marshal midi refs: %w", err)
	}
	errorsJSON, err := encodeStrings(job.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, filename, status, created_at, completed_at, musicxml_json, midi_json, errors_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             filename = excluded.filename, status = excluded.status,
             created_at = excluded.created_at, completed_at = excluded.completed_at,
             musicxml_json = excluded.musicxml_json, midi_json = excluded.midi_json,
             errors_json = excluded.errors_json`,
		job.ID,
		job.Filename,
		job.Status,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		completedAt,
		musicxmlJSON,
		midiJSON,
		errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("restore job: %w", err)
	}
	return nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusCompletedWithErrors:
			health.Partial += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const jobColumns = "id, filename, status, created_at, completed_at, musicxml_json, midi_json, errors_json"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		filename     sql.NullString
		statusStr    string
		createdRaw   string
		completedRaw sql.NullString
		musicxmlJSON sql.NullString
		midiJSON     sql.NullString
		errorsJSON   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&filename,
		&statusStr,
		&createdRaw,
		&completedRaw,
		&musicxmlJSON,
		&midiJSON,
		&errorsJSON,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:       id,
		Filename: filename.String,
		Status:   Status(statusStr),
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}

	var err error
	if job.MusicXMLFiles, err = decodeFileRefs(musicxmlJSON.String); err != nil {
		return nil, fmt.Errorf("decode musicxml refs: %w", err)
	}
	if job.MIDIFiles, err = decodeFileRefs(midiJSON.String); err != nil {
		return nil, fmt.Errorf("decode midi refs: %w", err)
	}
	if job.Errors, err = decodeStrings(errorsJSON.String); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	return job, nil
}

func encodeFileRefs(refs []FileRef) (string, error) {
	if len(refs) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeFileRefs(raw string) ([]FileRef, error) {
	if strings.TrimSpace(raw) == "" || raw == "[]" {
		return nil, nil
	}
	var refs []FileRef
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

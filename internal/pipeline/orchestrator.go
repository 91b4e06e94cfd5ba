package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"soundsketch/internal/analysis"
	"soundsketch/internal/artifacts"
	"soundsketch/internal/config"
	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
	"soundsketch/internal/services"
)

const analysisTimeout = 2 * time.Minute

// Deps collects the collaborators the orchestrator drives.
type Deps struct {
	Store       *jobs.Store
	Artifacts   *artifacts.Store
	Separator   Separator
	Transcriber Transcriber
	Notator     Notator
	// Extractor is optional; nil disables the analysis artifact.
	Extractor analysis.Extractor
	Config    *config.Config
	Logger    *slog.Logger
}

// Orchestrator runs one job through separation, per-instrument transcription
// and notation, and optional analysis, persisting artifacts as they appear.
type Orchestrator struct {
	store       *jobs.Store
	artifacts   *artifacts.Store
	separator   Separator
	transcriber Transcriber
	notator     Notator
	extractor   analysis.Extractor
	cfg         *config.Config
	logger      *slog.Logger
}

// NewOrchestrator wires an orchestrator from its dependencies.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("orchestrator requires a job store")
	case deps.Artifacts == nil:
		return nil, errors.New("orchestrator requires an artifact store")
	case deps.Separator == nil:
		return nil, errors.New("orchestrator requires a separator")
	case deps.Transcriber == nil:
		return nil, errors.New("orchestrator requires a transcriber")
	case deps.Notator == nil:
		return nil, errors.New("orchestrator requires a notator")
	case deps.Config == nil:
		return nil, errors.New("orchestrator requires configuration")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:       deps.Store,
		artifacts:   deps.Artifacts,
		separator:   deps.Separator,
		transcriber: deps.Transcriber,
		notator:     deps.Notator,
		extractor:   deps.Extractor,
		cfg:         deps.Config,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Process runs a queued job to a terminal state. The returned error reports
// infrastructure trouble (store unreachable, invalid transition); ordinary
// stage failures land in the job record instead.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	ctx = services.WithJobID(ctx, jobID)
	log := logging.WithContext(ctx, o.logger)

	job, err := o.store.Transition(ctx, jobID, jobs.StatusProcessing, nil, nil)
	if err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	o.snapshot(log, job)
	log.Info("job started", logging.String(logging.FieldEventType, "job_started"))

	sourcePath, err := o.locateSource(jobID)
	if err != nil {
		return o.finish(ctx, log, jobID, nil, []string{services.Details(err)})
	}

	stems, sepErr := o.separate(ctx, sourcePath)
	if sepErr != nil {
		message := "separation: " + services.Details(sepErr)
		log.Error("separation failed", logging.Error(sepErr))
		return o.finish(ctx, log, jobID, nil, []string{message})
	}
	if stems.Dir != "" {
		defer os.RemoveAll(stems.Dir)
	}

	instruments := make([]string, 0, len(stems.Files))
	for instrument := range stems.Files {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)
	log.Info("separation complete",
		logging.Int("instruments", len(instruments)),
		logging.String(logging.FieldEventType, "separation_complete"))

	outputs := &jobs.Outputs{}
	var jobErrors []string
	for _, instrument := range instruments {
		if err := o.processInstrument(ctx, jobID, instrument, stems.Files[instrument], outputs); err != nil {
			jobErrors = append(jobErrors, fmt.Sprintf("%s: %s", instrument, services.Details(err)))
		}
	}

	o.extractFeatures(ctx, log, jobID, sourcePath)

	if len(outputs.MIDI) == 0 && len(outputs.MusicXML) == 0 {
		if len(jobErrors) == 0 {
			jobErrors = append(jobErrors, "separation: no instruments produced")
		}
		return o.finish(ctx, log, jobID, nil, jobErrors)
	}
	return o.finish(ctx, log, jobID, outputs, jobErrors)
}

func (o *Orchestrator) locateSource(jobID string) (string, error) {
	names, err := o.artifacts.List(jobID, artifacts.CategorySource)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "separation", "locate source", "", err)
	}
	if len(names) == 0 {
		return "", services.Wrap(services.ErrStorage, "separation", "locate source", "source artifact missing", nil)
	}
	return o.artifacts.Path(jobID, artifacts.CategorySource, names[0])
}

func (o *Orchestrator) separate(ctx context.Context, sourcePath string) (*StemSet, error) {
	ctx = services.WithStage(ctx, "separation")
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.Workflow.SeparationTimeout))
	defer cancel()

	stems, err := o.separator.Separate(ctx, sourcePath)
	if err != nil {
		if services.IsTimeout(err) || ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "", "", "separation timed out", err)
		}
		return nil, err
	}
	if stems == nil || len(stems.Files) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "", "", "separation produced no stems", nil)
	}
	return stems, nil
}

// processInstrument carries one stem through persistence, transcription, and
// notation. Artifacts are stored and referenced the moment they exist, so a
// later sibling failure cannot take them away.
func (o *Orchestrator) processInstrument(ctx context.Context, jobID, instrument, stemPath string, outputs *jobs.Outputs) error {
	ctx = services.WithInstrument(ctx, instrument)
	log := logging.WithContext(ctx, o.logger)

	stemName := instrument + filepath.Ext(stemPath)
	if _, err := o.artifacts.PutFile(jobID, artifacts.CategoryStems, stemName, stemPath); err != nil {
		log.Error("stem persistence failed", logging.Error(err))
		return services.Wrap(services.ErrStorage, "", "", "could not store stem", err)
	}

	notes, err := o.transcribe(ctx, stemPath)
	if err != nil {
		log.Error("transcription failed", logging.Error(err))
		return err
	}
	log.Info("transcription complete", logging.Int("notes", len(notes)))

	musicXML, midi, err := o.render(ctx, instrument, notes)
	if err != nil {
		log.Error("notation failed", logging.Error(err))
		return err
	}

	midiPath, err := o.artifacts.PutBytes(jobID, artifacts.CategoryMIDI, instrument+".mid", midi)
	if err != nil {
		log.Error("midi persistence failed", logging.Error(err))
		return services.Wrap(services.ErrStorage, "", "", "could not store midi", err)
	}
	outputs.MIDI = append(outputs.MIDI, jobs.FileRef{Instrument: instrument, Path: midiPath})

	xmlPath, err := o.artifacts.PutBytes(jobID, artifacts.CategoryMusicXML, instrument+".musicxml", musicXML)
	if err != nil {
		log.Error("musicxml persistence failed", logging.Error(err))
		return services.Wrap(services.ErrStorage, "", "", "could not store musicxml", err)
	}
	outputs.MusicXML = append(outputs.MusicXML, jobs.FileRef{Instrument: instrument, Path: xmlPath})

	log.Info("instrument complete", logging.String(logging.FieldEventType, "instrument_complete"))
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, stemPath string) ([]NoteEvent, error) {
	ctx = services.WithStage(ctx, "transcription")
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.Workflow.TranscriptionTimeout))
	defer cancel()

	notes, err := o.transcriber.Transcribe(ctx, stemPath)
	if err != nil {
		if services.IsTimeout(err) || ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "", "", "transcription timed out", err)
		}
		return nil, err
	}
	return notes, nil
}

func (o *Orchestrator) render(ctx context.Context, instrument string, notes []NoteEvent) ([]byte, []byte, error) {
	ctx = services.WithStage(ctx, "notation")
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.Workflow.NotationTimeout))
	defer cancel()

	musicXML, midi, err := o.notator.Render(ctx, instrument, notes)
	if err != nil {
		if services.IsTimeout(err) || ctx.Err() != nil {
			return nil, nil, services.Wrap(services.ErrTimeout, "", "", "notation timed out", err)
		}
		return nil, nil, err
	}
	return musicXML, midi, nil
}

// extractFeatures writes the analysis artifact when an extractor is wired.
// Failures are logged and otherwise ignored; analysis never decides the job.
func (o *Orchestrator) extractFeatures(ctx context.Context, log *slog.Logger, jobID, sourcePath string) {
	if o.extractor == nil {
		return
	}
	ctx = services.WithStage(ctx, "analysis")
	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	features, err := o.extractor.Extract(ctx, sourcePath)
	if err != nil {
		log.Warn("feature extraction unavailable", logging.Error(err))
		return
	}
	data, err := features.Encode()
	if err != nil {
		log.Warn("feature encoding failed", logging.Error(err))
		return
	}
	if _, err := o.artifacts.PutBytes(jobID, artifacts.CategoryAnalysis, "features.json", data); err != nil {
		log.Warn("feature persistence failed", logging.Error(err))
	}
}

// finish drives the terminal transition with bounded retries and refreshes
// the on-disk snapshot.
func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, jobID string, outputs *jobs.Outputs, jobErrors []string) error {
	status := jobs.StatusCompleted
	switch {
	case outputs == nil || (len(outputs.MIDI) == 0 && len(outputs.MusicXML) == 0):
		status = jobs.StatusFailed
	case len(jobErrors) > 0:
		status = jobs.StatusCompletedWithErrors
	}

	job, err := o.transitionWithRetry(ctx, jobID, status, outputs, jobErrors)
	if err != nil {
		log.Error("terminal transition failed", logging.Error(err))
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}
	o.snapshot(log, job)
	log.Info("job finished",
		logging.String("status", string(job.Status)),
		logging.Int("errors", len(job.Errors)),
		logging.String(logging.FieldEventType, "job_finished"))
	return nil
}

func (o *Orchestrator) transitionWithRetry(ctx context.Context, jobID string, status jobs.Status, outputs *jobs.Outputs, jobErrors []string) (*jobs.Job, error) {
	retries := o.cfg.Workflow.PersistRetries
	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		job, err := o.store.Transition(ctx, jobID, status, outputs, jobErrors)
		if err == nil {
			return job, nil
		}
		if errors.Is(err, jobs.ErrInvalidTransition) || errors.Is(err, jobs.ErrNotFound) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// snapshot refreshes record.json for index reconstruction; losing it is
// logged but never fatal.
func (o *Orchestrator) snapshot(log *slog.Logger, job *jobs.Job) {
	if job == nil {
		return
	}
	if err := o.artifacts.WriteRecord(job); err != nil {
		log.Warn("record snapshot failed", logging.Error(err))
	}
}

func (o *Orchestrator) stageTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"soundsketch/internal/artifacts"
	"soundsketch/internal/config"
	"soundsketch/internal/deps"
	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
	"soundsketch/internal/workflow"
)

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobs.Store
	artifacts *artifacts.Store
	workflow  *workflow.Manager
	deps      []deps.Status

	lockPath string
	lock     *flock.Flock

	server  *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, artifactStore *artifacts.Store, wf *workflow.Manager, depStatuses []deps.Status, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || artifactStore == nil || wf == nil {
		return nil, errors.New("daemon requires config, stores, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "soundsketchd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		artifacts: artifactStore,
		workflow:  wf,
		deps:      depStatuses,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, store, artifactStore, wf, logger)
	return d, nil
}

// Start acquires the instance lock, reconciles artifact snapshots into the
// job store, and launches the worker pool and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another soundsketch daemon instance is already running")
	}

	if restored, err := d.reconcileArtifacts(ctx); err != nil {
		d.logger.Warn("artifact reconcile incomplete", logging.Error(err))
	} else if restored > 0 {
		d.logger.Info("restored jobs from artifact snapshots", logging.Int("count", restored))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	if summary, err := d.store.Health(ctx); err == nil {
		d.logger.Info("job store summary",
			logging.Int("total", summary.Total),
			logging.Int("queued", summary.Queued),
			logging.Int("failed", summary.Failed))
	}
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()))
	return nil
}

// Stop shuts down the HTTP API and the worker pool and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	d.workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases the job store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr reports the bound API address, empty until started.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Dependencies returns the startup capability probe results.
func (d *Daemon) Dependencies() []deps.Status {
	statuses := make([]deps.Status, len(d.deps))
	copy(statuses, d.deps)
	return statuses
}

// reconcileArtifacts rebuilds job rows from record.json snapshots found in
// the artifact tree. Only jobs unknown to the database are restored, so a
// healthy database wins over stale snapshots.
func (d *Daemon) reconcileArtifacts(ctx context.Context) (int, error) {
	ids, err := d.artifacts.ListJobs()
	if err != nil {
		return 0, fmt.Errorf("list artifact jobs: %w", err)
	}

	restored := 0
	for _, id := range ids {
		if _, err := d.store.Get(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, jobs.ErrNotFound) {
			return restored, fmt.Errorf("check job %s: %w", id, err)
		}

		record, err := d.artifacts.ReadRecord(id)
		if errors.Is(err, artifacts.ErrRecordNotFound) {
			d.logger.Warn("artifact directory without snapshot", logging.String(logging.FieldJobID, id))
			continue
		}
		if err != nil {
			d.logger.Warn("unreadable job snapshot",
				logging.String(logging.FieldJobID, id), logging.Error(err))
			continue
		}
		job, err := record.ToJob()
		if err != nil {
			d.logger.Warn("invalid job snapshot",
				logging.String(logging.FieldJobID, id), logging.Error(err))
			continue
		}
		if err := d.store.Restore(ctx, job); err != nil {
			return restored, fmt.Errorf("restore job %s: %w", id, err)
		}
		restored++
	}
	return restored, nil
}

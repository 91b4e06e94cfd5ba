package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"soundsketch/internal/config"
	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
)

// ErrQueueFull signals backpressure: the submission queue has no room and
// the caller should tell the client to retry later.
var ErrQueueFull = errors.New("job queue full")

// Processor runs one job to a terminal state.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Manager owns the in-memory job queue and the fixed worker pool that drains
// it. Queue order is FIFO; capacity and worker count come from configuration.
type Manager struct {
	cfg       *config.Config
	store     *jobs.Store
	processor Processor
	logger    *slog.Logger

	queue chan string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *jobs.Store, processor Processor, logger *slog.Logger) *Manager {
	capacity := cfg.Workflow.QueueCapacity
	if capacity < 1 {
		capacity = 1
	}
	return &Manager{
		cfg:       cfg,
		store:     store,
		processor: processor,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		queue:     make(chan string, capacity),
	}
}

// Enqueue hands a job to the worker pool without blocking.
func (m *Manager) Enqueue(jobID string) error {
	select {
	case m.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth reports how many jobs wait in the channel. Diagnostic only.
func (m *Manager) QueueDepth() int {
	return len(m.queue)
}

// Start sweeps jobs abandoned by a previous process, re-enqueues surviving
// queued jobs, and launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	if count, err := m.store.FailAbandoned(ctx, jobs.AbnormalTerminationReason); err != nil {
		return fmt.Errorf("sweep abandoned jobs: %w", err)
	} else if count > 0 {
		m.logger.Warn("failed abandoned jobs from previous run",
			logging.Int64("count", count),
			logging.String(logging.FieldEventType, "abandoned_jobs_failed"))
	}

	if err := m.requeueSurvivors(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.WorkerCount
	if workers < 1 {
		workers = 1
	}
	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", workers),
		logging.Int("queue_capacity", cap(m.queue)))
	return nil
}

// Stop terminates the worker pool and waits for in-flight jobs to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// requeueSurvivors reloads queued jobs left over from a previous run.
// Anything beyond queue capacity stays queued in the store and is picked up
// on the next restart; with default sizing that does not happen.
func (m *Manager) requeueSurvivors(ctx context.Context) error {
	queued, err := m.store.ListByStatus(ctx, jobs.StatusQueued)
	if err != nil {
		return fmt.Errorf("list queued jobs: %w", err)
	}
	for _, job := range queued {
		if err := m.Enqueue(job.ID); err != nil {
			m.logger.Warn("could not requeue surviving job",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}
	if len(queued) > 0 {
		m.logger.Info("requeued surviving jobs", logging.Int("count", len(queued)))
	}
	return nil
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-m.queue:
			m.runJob(ctx, logger, jobID)
		}
	}
}

// runJob executes one job with panic isolation: a panicking stage must not
// take the worker down or leave the job in processing.
func (m *Manager) runJob(ctx context.Context, logger *slog.Logger, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panic recovered",
				logging.String(logging.FieldJobID, jobID),
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "worker_panic"))
			m.failJob(ctx, jobID, fmt.Sprintf("%s: %v", jobs.AbnormalTerminationReason, r))
		}
	}()

	if err := m.processor.Process(ctx, jobID); err != nil {
		logger.Error("job processing error",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
		m.failJob(ctx, jobID, jobs.AbnormalTerminationReason+": "+err.Error())
	}
}

// failJob is the last-resort transition used after panics and
// infrastructure errors. A job already terminal is left alone.
func (m *Manager) failJob(ctx context.Context, jobID, reason string) {
	_, err := m.store.Transition(ctx, jobID, jobs.StatusFailed, nil, []string{reason})
	if err != nil && !errors.Is(err, jobs.ErrInvalidTransition) && !errors.Is(err, jobs.ErrNotFound) {
		m.logger.Error("could not mark job failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check jobs database access"))
	}
}

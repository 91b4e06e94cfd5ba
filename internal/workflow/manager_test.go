package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
	"soundsketch/internal/testsupport"
	"soundsketch/internal/workflow"
)

// recordingProcessor marks jobs completed and remembers which ones it saw.
type recordingProcessor struct {
	store *jobs.Store

	mu   sync.Mutex
	seen []string
	done chan string

	failWith  error
	panicWith string
}

func newRecordingProcessor(store *jobs.Store) *recordingProcessor {
	return &recordingProcessor{store: store, done: make(chan string, 16)}
}

func (p *recordingProcessor) Process(ctx context.Context, jobID string) error {
	p.mu.Lock()
	p.seen = append(p.seen, jobID)
	p.mu.Unlock()
	defer func() { p.done <- jobID }()

	if p.panicWith != "" {
		panic(p.panicWith)
	}
	if p.failWith != nil {
		return p.failWith
	}
	if _, err := p.store.Transition(ctx, jobID, jobs.StatusProcessing, nil, nil); err != nil {
		return err
	}
	outputs := &jobs.Outputs{}
	_, err := p.store.Transition(ctx, jobID, jobs.StatusCompleted, outputs, nil)
	return err
}

func (p *recordingProcessor) waitFor(t *testing.T, jobID string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case id := <-p.done:
			if id == jobID {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for job %s", jobID)
		}
	}
}

func waitForStatus(t *testing.T, store *jobs.Store, jobID string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("store.Get: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func TestManagerProcessesEnqueuedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	processor := newRecordingProcessor(store)
	manager := workflow.NewManager(cfg, store, processor, logging.NewNop())

	job := testsupport.NewJob(t, store, "job-1", "track.mp3")
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	if err := manager.Enqueue(job.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	processor.waitFor(t, job.ID)
	waitForStatus(t, store, job.ID, jobs.StatusCompleted)
}

func TestEnqueueBackpressure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1, 2))
	store := testsupport.MustOpenStore(t, cfg)
	// Manager never started: nothing drains the queue.
	manager := workflow.NewManager(cfg, store, newRecordingProcessor(store), logging.NewNop())

	if err := manager.Enqueue("a"); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	if err := manager.Enqueue("b"); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}
	if err := manager.Enqueue("c"); !errors.Is(err, workflow.ErrQueueFull) {
		t.Fatalf("Enqueue c = %v, want ErrQueueFull", err)
	}
	if depth := manager.QueueDepth(); depth != 2 {
		t.Fatalf("QueueDepth = %d, want 2", depth)
	}
}

func TestStartSweepsAbandonedAndRequeuesQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	abandoned := testsupport.NewJob(t, store, "abandoned", "stuck.mp3")
	if _, err := store.Transition(context.Background(), abandoned.ID, jobs.StatusProcessing, nil, nil); err != nil {
		t.Fatalf("transition to processing: %v", err)
	}
	survivor := testsupport.NewJob(t, store, "survivor", "waiting.mp3")

	processor := newRecordingProcessor(store)
	manager := workflow.NewManager(cfg, store, processor, logging.NewNop())
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	failed := waitForStatus(t, store, abandoned.ID, jobs.StatusFailed)
	if len(failed.Errors) == 0 || !strings.Contains(failed.Errors[0], jobs.AbnormalTerminationReason) {
		t.Fatalf("abandoned job errors = %v", failed.Errors)
	}

	processor.waitFor(t, survivor.ID)
	waitForStatus(t, store, survivor.ID, jobs.StatusCompleted)
}

func TestWorkerPanicFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	processor := newRecordingProcessor(store)
	processor.panicWith = "stage blew up"
	manager := workflow.NewManager(cfg, store, processor, logging.NewNop())

	job := testsupport.NewJob(t, store, "panicky", "track.wav")
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	if err := manager.Enqueue(job.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	if len(failed.Errors) != 1 || !strings.Contains(failed.Errors[0], "stage blew up") {
		t.Fatalf("errors = %v, want panic message", failed.Errors)
	}

	// The worker must survive the panic and keep draining the queue.
	processor.panicWith = ""
	next := testsupport.NewJob(t, store, "after-panic", "next.wav")
	if err := manager.Enqueue(next.ID); err != nil {
		t.Fatalf("Enqueue after panic: %v", err)
	}
	processor.waitFor(t, next.ID)
	waitForStatus(t, store, next.ID, jobs.StatusCompleted)
}

func TestProcessErrorFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	processor := newRecordingProcessor(store)
	processor.failWith = errors.New("database on fire")
	manager := workflow.NewManager(cfg, store, processor, logging.NewNop())

	job := testsupport.NewJob(t, store, "broken", "track.flac")
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	if err := manager.Enqueue(job.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	if len(failed.Errors) != 1 || !strings.Contains(failed.Errors[0], "database on fire") {
		t.Fatalf("errors = %v", failed.Errors)
	}
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, newRecordingProcessor(store), logging.NewNop())

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer manager.Stop()
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, newRecordingProcessor(store), logging.NewNop())

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	manager.Stop()
	manager.Stop()
}

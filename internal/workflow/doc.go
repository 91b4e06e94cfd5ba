// Package workflow coordinates conversion job execution. A Manager owns a
// bounded FIFO queue and a fixed pool of workers that drain it; each worker
// hands one job at a time to a Processor and guarantees the job reaches a
// terminal state even when the processor panics. On startup the manager
// sweeps jobs abandoned by a previous process and re-enqueues surviving
// queued jobs.
package workflow

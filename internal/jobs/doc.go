// Package jobs persists conversion jobs in SQLite and enforces the job
// lifecycle: queued -> processing -> completed, completed_with_errors, or
// failed. Terminal records are immutable; all status changes go through
// guarded updates so concurrent workers cannot race a job into an invalid
// state.
package jobs

package jobs

import "errors"

var (
	// ErrNotFound indicates the job id does not exist in the store.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition indicates a status change was attempted on a
	// terminal job or along a disallowed edge. Reaching it through the API
	// is a programming error, not a user condition.
	ErrInvalidTransition = errors.New("invalid job transition")

	// ErrJobProcessing indicates deletion was rejected because a worker
	// currently holds the job.
	ErrJobProcessing = errors.New("job is currently processing")
)

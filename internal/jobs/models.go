package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusQueued              Status = "queued"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// AbnormalTerminationReason is the error recorded when a worker dies mid-job
// or the daemon restarts while a job is still marked processing.
const AbnormalTerminationReason = "abnormal termination"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusCompletedWithErrors,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted:           {},
	StatusCompletedWithErrors: {},
	StatusFailed:              {},
}

// transitionsInto lists, per target status, the statuses a job may come from.
var transitionsInto = map[Status][]Status{
	StatusProcessing:          {StatusQueued},
	StatusCompleted:           {StatusProcessing},
	StatusCompletedWithErrors: {StatusProcessing},
	StatusFailed:              {StatusQueued, StatusProcessing},
}

// FileRef names one generated artifact for one instrument.
type FileRef struct {
	Instrument string `json:"instrument"`
	Path       string `json:"path"`
}

// Outputs carries the artifact references recorded on a terminal transition.
type Outputs struct {
	MusicXML []FileRef
	MIDI     []FileRef
}

// Job is the authoritative record of one conversion request.
type Job struct {
	ID            string
	Filename      string
	Status        Status
	CreatedAt     time.Time
	CompletedAt   *time.Time
	MusicXMLFiles []FileRef
	MIDIFiles     []FileRef
	Errors        []string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsTerminal reports whether the job has reached a final state.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitionsInto[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Partial    int
	Failed     int
}

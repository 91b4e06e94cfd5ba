// Package deps probes the external tools the conversion pipeline shells out
// to. The daemon runs the probe once at startup: required tools gate startup,
// optional ones select degraded implementations.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"soundsketch/internal/config"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the probe list from configuration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "separation",
			Command:     cfg.Separation.Command,
			Description: "source separation (demucs)",
		},
		{
			Name:        "transcription",
			Command:     cfg.Transcription.Command,
			Description: "note transcription (basic-pitch)",
		},
		{
			Name:        "analysis",
			Command:     cfg.Analysis.PythonCommand,
			Description: "feature extraction interpreter",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}

// Available reports whether the named dependency passed the probe.
func Available(statuses []Status, name string) bool {
	for _, status := range statuses {
		if status.Name == name {
			return status.Available
		}
	}
	return false
}

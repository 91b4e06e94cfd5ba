// Package logging builds the slog loggers used across the daemon and CLI.
//
// It provides a console handler for interactive output, a JSON handler for
// machine consumption, standardized field names, and helpers that derive
// job/stage attributes from a context so pipeline logs stay correlated.
package logging

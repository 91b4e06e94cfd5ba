package services

import "context"

type contextKey string

const (
	jobIDKey      contextKey = "job_id"
	stageKey      contextKey = "stage"
	instrumentKey contextKey = "instrument"
)

// WithJobID annotates context with the job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithInstrument annotates context with the instrument label being processed.
func WithInstrument(ctx context.Context, instrument string) context.Context {
	if instrument == "" {
		return ctx
	}
	return context.WithValue(ctx, instrumentKey, instrument)
}

// InstrumentFromContext returns the instrument label if present.
func InstrumentFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(instrumentKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// Package pipeline defines the stage capability interfaces and the
// orchestrator that drives one job from queued to a terminal state:
// separation first (fatal on failure), then per-instrument transcription and
// notation with failure isolation, then optional feature extraction.
package pipeline

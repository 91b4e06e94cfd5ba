package main

import (
	"log/slog"
	"strings"

	"soundsketch/internal/analysis"
	"soundsketch/internal/artifacts"
	"soundsketch/internal/config"
	"soundsketch/internal/deps"
	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
	"soundsketch/internal/notation"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/services/basicpitch"
	"soundsketch/internal/services/demucs"
)

// buildOrchestrator wires the conversion pipeline from its stage clients.
func buildOrchestrator(cfg *config.Config, store *jobs.Store, artifactStore *artifacts.Store, statuses []deps.Status, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	return pipeline.NewOrchestrator(pipeline.Deps{
		Store:       store,
		Artifacts:   artifactStore,
		Separator:   demucs.New(cfg, logger),
		Transcriber: basicpitch.New(cfg, logger),
		Notator:     notation.Renderer{},
		Extractor:   selectExtractor(cfg, statuses, logger),
		Config:      cfg,
		Logger:      logger,
	})
}

// selectExtractor picks the feature extraction implementation once at
// startup: the python script when the interpreter probe passed and a script
// is configured, otherwise the degraded metadata-only fallback.
func selectExtractor(cfg *config.Config, statuses []deps.Status, logger *slog.Logger) analysis.Extractor {
	if deps.Available(statuses, "analysis") && strings.TrimSpace(cfg.Analysis.ScriptPath) != "" {
		return analysis.NewScriptExtractor(cfg)
	}
	if logger != nil {
		logger.Info("feature extraction degraded to file metadata",
			logging.Args(logging.String("python_command", cfg.Analysis.PythonCommand))...)
	}
	return analysis.MetadataExtractor{}
}

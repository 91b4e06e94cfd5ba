package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"soundsketch/internal/artifacts"
	"soundsketch/internal/config"
	"soundsketch/internal/daemon"
	"soundsketch/internal/deps"
	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
	"soundsketch/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		os.Exit(1)
	}

	artifactStore, err := artifacts.NewStore(cfg)
	if err != nil {
		logger.Error("open artifact store", logging.Error(err))
		os.Exit(1)
	}

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	reportDependencies(logger, statuses)
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logger.Error("required external tools missing",
			logging.Any("tools", missing),
			logging.String(logging.FieldErrorHint, "install demucs and basic-pitch, or point the config at them"))
		os.Exit(1)
	}

	orchestrator, err := buildOrchestrator(cfg, store, artifactStore, statuses, logger)
	if err != nil {
		logger.Error("wire pipeline", logging.Error(err))
		os.Exit(1)
	}

	manager := workflow.NewManager(cfg, store, orchestrator, logger)
	d, err := daemon.New(cfg, store, artifactStore, manager, statuses, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("soundsketchd shutting down")
}

func reportDependencies(logger *slog.Logger, statuses []deps.Status) {
	for _, status := range statuses {
		if status.Available {
			logger.Info("external tool available",
				logging.Args(
					logging.String("name", status.Name),
					logging.String("command", status.Command))...)
			continue
		}
		logger.Warn("external tool unavailable",
			logging.Args(
				logging.String("name", status.Name),
				logging.Bool("optional", status.Optional),
				logging.String("detail", status.Detail))...)
	}
}

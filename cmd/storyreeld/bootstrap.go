package main

import (
	"log/slog"

	"storyreel/internal/api"
	"storyreel/internal/config"
	"storyreel/internal/daemon"
	"storyreel/internal/reconciler"
	"storyreel/internal/services/generator"
	"storyreel/internal/services/scriptai"
	"storyreel/internal/studio"
)

// bootstrap wires the daemon's services from config.
func bootstrap(cfg *config.Config, store *studio.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	gen := generator.NewConfiguredClient(cfg)
	analyzer := scriptai.NewConfiguredClient(cfg, logger)
	rec := reconciler.NewManager(cfg, store, gen, logger)
	jobs := api.NewJobService(store, gen, logger)
	episodes := api.NewEpisodeService(store, analyzer, cfg.Paths.OutputDir, logger)
	return daemon.New(cfg, store, logger, rec, gen, jobs, episodes)
}

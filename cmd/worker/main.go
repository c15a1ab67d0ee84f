package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"classattend/internal/app"
	"classattend/internal/config"
	"classattend/internal/ledger"
	"classattend/internal/observability"
	"classattend/internal/sweeper"
)

// Worker runs the daily absence sweep and handles sweeps queued by the API.
func main() {
	cfg := config.Load()
	logger := observability.InitLogger("classattend-worker", cfg.Production())
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	at, err := ledger.ParseClock(cfg.SweepAt)
	if err != nil {
		logger.Fatal().Err(err).Str("sweep_at", cfg.SweepAt).Msg("invalid SWEEP_AT")
	}
	if cfg.QueueBackend != app.BackendRedis {
		log.Warn().Msg("memory queue: sweeps requested through the API run in the API process, not here")
	}

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend setup failed")
	}
	defer deps.Close()

	runner := sweeper.New(deps.Service, deps.Queue, at, cfg.Location())
	log.Info().Str("sweep_at", at.String()).Str("timezone", cfg.ClassTimezone).Msg("worker started")
	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker failed")
		return
	}
	log.Info().Msg("worker stopped")
}

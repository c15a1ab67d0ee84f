package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"classattend/internal/api"
	"classattend/internal/app"
	"classattend/internal/config"
	"classattend/internal/ledger"
	"classattend/internal/observability"
	"classattend/internal/sweeper"
)

func main() {
	cfg := config.Load()
	logger := observability.InitLogger("classattend-api", cfg.Production())
	observability.RegisterMetrics()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// With the in-memory queue nothing outside this process can see
	// requested sweeps, so the sweeper runs here.
	if cfg.QueueBackend != app.BackendRedis {
		at, err := ledger.ParseClock(cfg.SweepAt)
		if err != nil {
			return err
		}
		runner := sweeper.New(deps.Service, deps.Queue, at, cfg.Location())
		go func() {
			if err := runner.Run(ctx); err != nil {
				log.Error().Err(err).Msg("embedded sweeper failed")
			}
		}()
	}

	checks := map[string]api.HealthCheck{}
	for name, check := range deps.HealthChecks() {
		checks[name] = check
	}
	handler := api.New(deps.Service, deps.Queue, api.Tokens{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, checks)
	r := api.Router(handler, api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        deps.Limiter,
		Logger:         log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

// Package app wires configuration into backends shared by the API and the
// worker.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"classattend/internal/classroom"
	"classattend/internal/config"
	"classattend/internal/docstore"
	"classattend/internal/httpmiddleware"
	"classattend/internal/invite"
	"classattend/internal/queue"
	"classattend/internal/store"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	sweepQueueKey = "attendance:sweeps"
	invitePrefix  = "attendance:invite:"
)

// Deps are the process-wide backends. DB and Redis are nil when no
// configured backend needs them.
type Deps struct {
	DB      *store.DB
	Redis   *store.Redis
	Docs    docstore.Store
	Queue   queue.Queue
	Limiter httpmiddleware.Limiter
	Service *classroom.Service
}

// Build connects the backends selected by cfg.
func Build(ctx context.Context, cfg config.App) (*Deps, error) {
	d := &Deps{}

	if needsRedis(cfg) {
		d.Redis = store.NewRedis(cfg.RedisAddr)
		if !d.Redis.Healthy(ctx) {
			log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet")
		}
	}

	switch cfg.StoreBackend {
	case BackendMemory:
		log.Warn().Msg("using in-memory document store; data is lost on restart")
		d.Docs = docstore.NewMemory()
	case BackendPostgres:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.DB = db
		pg := docstore.NewPostgres(db.Client)
		if err := pg.Migrate(ctx); err != nil {
			d.Close()
			return nil, errors.Wrap(err, "migrate documents")
		}
		d.Docs = pg
	default:
		d.Close()
		return nil, errors.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	var invites invite.Store
	if cfg.InviteBackend == BackendRedis {
		invites = invite.NewRedisStore(d.Redis.Client, invitePrefix, 0)
	} else {
		invites = invite.NewMemoryStore()
	}

	if cfg.QueueBackend == BackendRedis {
		d.Queue = queue.NewRedisQueue(d.Redis.Client, sweepQueueKey)
	} else {
		d.Queue = queue.NewInMemory(64)
	}

	if cfg.RateLimitBackend == BackendRedis {
		d.Limiter = httpmiddleware.NewRedisWindow(d.Redis.Client, cfg.RateLimitPerMin)
	} else {
		d.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	d.Service = classroom.NewService(d.Docs, invite.NewIssuer(invites, cfg.InviteTTL, nil), classroom.Options{
		Location:            cfg.Location(),
		CheckinRadiusMeters: float64(cfg.CheckinRadiusMeters),
	})
	return d, nil
}

func needsRedis(cfg config.App) bool {
	return cfg.InviteBackend == BackendRedis || cfg.QueueBackend == BackendRedis || cfg.RateLimitBackend == BackendRedis
}

// HealthChecks returns one check per connected backend.
func (d *Deps) HealthChecks() map[string]func(context.Context) bool {
	checks := map[string]func(context.Context) bool{}
	if d.DB != nil {
		checks["db"] = d.DB.Healthy
	}
	if d.Redis != nil {
		checks["redis"] = d.Redis.Healthy
	}
	return checks
}

// Close releases every connection Build opened.
func (d *Deps) Close() {
	if err := d.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("close postgres")
	}
	if err := d.Redis.Close(); err != nil {
		log.Warn().Err(err).Msg("close redis")
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"landtrust/internal/blob"
	identityservice "landtrust/internal/identity/service"
	identitystore "landtrust/internal/identity/store"
	"landtrust/internal/platform/config"
	"landtrust/internal/platform/metrics"
	"landtrust/internal/platform/postgres"
	"landtrust/internal/platform/redis"
	"landtrust/internal/ratelimit"
	registrationservice "landtrust/internal/registration/service"
	registrationstore "landtrust/internal/registration/store"
	settingsservice "landtrust/internal/settings/service"
	settingsstore "landtrust/internal/settings/store"
	audit "landtrust/pkg/platform/audit"
	auditmemory "landtrust/pkg/platform/audit/store/memory"
	auditpostgres "landtrust/pkg/platform/audit/store/postgres"
	"landtrust/pkg/platform/circuit"
	"landtrust/pkg/platform/tx"
)

// infra holds the storage backends chosen from configuration. Without a
// database URL every store is in memory and units of work use MemoryRunner.
type infra struct {
	db    *sql.DB
	redis *redis.Client

	users         identityservice.UserStore
	registrations registrationservice.Store
	settings      settingsservice.Store
	events        audit.Store
	runner        tx.Runner
	blobs         blob.Store
	limits        ratelimit.Store
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics) (*infra, error) {
	inf := &infra{}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		inf.db = db
		inf.users = identitystore.NewPostgres(db)
		inf.registrations = registrationstore.NewPostgres(db)
		inf.settings = settingsstore.NewPostgres(db)
		inf.events = auditpostgres.New(db)
		inf.runner = tx.NewPostgresRunner(db, cfg.TxTimeout)
	} else {
		log.Warn("no database configured; using in-memory stores")
		users := identitystore.NewInMemory()
		regs := registrationstore.NewInMemory()
		settings := settingsstore.NewInMemory()
		events := auditmemory.NewInMemoryStore()
		inf.users, inf.registrations, inf.settings, inf.events = users, regs, settings, events
		inf.runner = tx.NewMemoryRunner(users, regs, settings, events)
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		inf.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	inf.limits = ratelimit.NewMemoryStore()
	if rc != nil {
		inf.redis = rc
		inf.limits = ratelimit.NewRedisStore(rc.Client)
		inf.settings = settingsstore.NewCached(inf.settings, rc.Client, cfg.Settings.CacheTTL,
			settingsstore.WithCacheLogger(log),
			settingsstore.WithCacheMetrics(m),
		)
	}

	var backend blob.Store
	if cfg.Blob.Bucket != "" {
		backend = blob.NewS3Store(cfg.Blob)
	} else {
		log.Warn("no S3 bucket configured; uploads are kept in memory")
		backend = blob.NewMemoryStore("/uploads")
	}
	breaker := circuit.New("blob",
		circuit.WithFailureThreshold(cfg.Blob.BreakerFailures),
		circuit.WithCooldown(cfg.Blob.BreakerCooldown),
	)
	inf.blobs = blob.NewGuardedStore(backend, breaker, log)

	return inf, nil
}

func (i *infra) Close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

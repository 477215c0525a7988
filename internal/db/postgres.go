package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/neuro-rehab-portal/internal/events"
)

// AuditOptions configures the Postgres audit store.
type AuditOptions struct {
	DSN string
	// WriteTimeout becomes the server-side statement_timeout so a slow insert
	// is cancelled by Postgres as well as by the recorder.
	WriteTimeout time.Duration
}

func poolConfig(opts AuditOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	// One sink, sequential inserts.
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.ConnConfig.RuntimeParams["application_name"] = "neuro-rehab-portal"
	if opts.WriteTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(opts.WriteTimeout.Milliseconds(), 10)
	}
	return cfg, nil
}

// OpenAuditStore connects to Postgres, creates the session_events table when
// missing and returns the sink that appends to it. The pool is returned for
// readiness checks and shutdown; nothing reads events back.
func OpenAuditStore(ctx context.Context, opts AuditOptions) (*pgxpool.Pool, *events.PgSink, error) {
	cfg, err := poolConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pgx pool: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(setupCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	sink := events.NewPgSink(pool)
	if err := sink.EnsureSchema(setupCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return pool, sink, nil
}

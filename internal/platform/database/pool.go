// Package database opens the Postgres pool behind the credential store and
// the audit log.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"didlab/internal/platform/config"
)

const pingTimeout = 5 * time.Second

// Pool is the process-wide Postgres handle.
type Pool struct {
	db *sql.DB
}

// Options are the collaborators New reports to. Both may be nil.
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// New opens the pool, verifies connectivity and, when cfg.Migrate is set,
// applies pending migrations. An empty URL returns nil, nil so callers fall
// back to in-memory storage.
func New(ctx context.Context, cfg config.DatabaseConfig, opts Options) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := ping(ctx, db); err != nil {
		db.Close() //nolint:errcheck // init failed
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.Migrate {
		applied, err := Migrate(ctx, db)
		if err != nil {
			db.Close() //nolint:errcheck // init failed
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		if opts.Logger != nil {
			opts.Logger.InfoContext(ctx, "database migrations applied", "count", len(applied), "files", applied)
		}
	}

	if opts.Registerer != nil {
		if err := opts.Registerer.Register(collectors.NewDBStatsCollector(db, "credentials")); err != nil {
			db.Close() //nolint:errcheck // init failed
			return nil, fmt.Errorf("register db stats: %w", err)
		}
	}

	return &Pool{db: db}, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// DB exposes the handle for stores.
func (p *Pool) DB() *sql.DB { return p.db }

// Health is the readiness probe.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return ping(ctx, p.db)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

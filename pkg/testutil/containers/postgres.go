//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"didlab/internal/platform/database"
)

// PostgresContainer is a migrated Postgres instance holding the credential
// and audit tables.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
	// Applied lists the migration files run at startup.
	Applied []string
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("didlab_it"),
		postgres.WithUsername("didlab"),
		postgres.WithPassword("didlab"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	fail := func(format string, args ...any) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("postgres dsn: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fail("open postgres: %v", err)
	}
	applied, err := database.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		fail("migrate: %v", err)
	}

	// Shared across suites; the testcontainers reaper removes it at exit.
	return &PostgresContainer{Container: container, DSN: dsn, DB: db, Applied: applied}
}

// Reset empties the credential and audit tables.
func (p *PostgresContainer) Reset(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `TRUNCATE TABLE credential_records, audit_events`)
	return err
}

// CountRecords returns the number of stored credential records.
func (p *PostgresContainer) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM credential_records`).Scan(&n)
	return n, err
}

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens the connection pool shared by every queue, scheduler,
// and worker task. Size follows the concurrency model's formula: at
// least numWorkers+2 so background tasks never deadlock waiting on a
// connection held by a worker.
func NewPool(ctx context.Context, databaseURL string, numWorkers int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	minConns := int32(numWorkers + 2)
	cfg.MaxConns = minConns * 3
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// SetupAppUser creates (or updates) the restricted role the queue and
// worker processes connect as, matching the original bootstrap step
// gated by APP_USER_PASSWORD. Utility statements like CREATE/ALTER ROLE
// don't accept bind parameters, so the password is escaped and spliced
// into the DO block by hand rather than passed as a query argument.
func SetupAppUser(ctx context.Context, pool *pgxpool.Pool, password string) error {
	escaped := strings.ReplaceAll(password, "'", "''")
	stmt := fmt.Sprintf(`
		DO $do$
		BEGIN
			IF NOT EXISTS (SELECT FROM pg_roles WHERE rolname = 'windmill_app') THEN
				EXECUTE format('CREATE ROLE windmill_app LOGIN PASSWORD %%L', '%s');
			ELSE
				EXECUTE format('ALTER ROLE windmill_app LOGIN PASSWORD %%L', '%s');
			END IF;
		END
		$do$;`, escaped, escaped)

	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("setup app user: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing is tuned for the booking path: every reservation holds a
// connection only for the insert itself (slot filtering happens in memory
// under the Redis lock), so a modest pool covers the API, the seeder and
// the simulator alike.
const (
	poolMaxConns       = 16
	poolMinConns       = 2
	poolHealthCheck    = 30 * time.Second
	poolConnLifetime   = time.Hour
	poolConnIdleTime   = 10 * time.Minute
	connectPingTimeout = 5 * time.Second
	connectDialTimeout = 5 * time.Second
)

// ConnectPostgres builds a pgx pool from the DSN and verifies connectivity
// before handing it back. Callers own the pool and must Close it.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.HealthCheckPeriod = poolHealthCheck
	cfg.MaxConnLifetime = poolConnLifetime
	cfg.MaxConnIdleTime = poolConnIdleTime
	cfg.ConnConfig.ConnectTimeout = connectDialTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

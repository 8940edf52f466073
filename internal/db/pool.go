package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	minLedgerConns    = 5
	healthCheckPeriod = 30 * time.Second
)

// Pool is the ledger's PostgreSQL connection pool. It satisfies domain.Pinger.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to the ledger database and verifies the connection.
// maxConns <= 0 keeps the pgx default.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = min(minLedgerConns, cfg.MaxConns)
	cfg.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach ledger database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

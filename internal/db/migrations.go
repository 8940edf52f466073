package db

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact TEXT NOT NULL,
		balance NUMERIC(18, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		destination_id TEXT NOT NULL,
		amount NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
		status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'success', 'failed')),
		settlement_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finalized_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_transfers_source_created ON transfers(source_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transfers_destination_created ON transfers(destination_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transfers_pending ON transfers(created_at) WHERE status = 'pending';`,
}

// Migrate creates the ledger schema if it doesn't exist.
func Migrate(ctx context.Context, pool *Pool) error {
	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}

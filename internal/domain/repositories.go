package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStore defines durable keyed storage of account records.
type AccountStore interface {
	// Create inserts a new account.
	// Returns ErrAccountAlreadyExists if the identifier is taken.
	Create(ctx context.Context, account *Account) error

	// Get retrieves an account by identifier.
	// Returns ErrAccountNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Account, error)

	// AdjustBalance atomically adds delta to the account balance and returns the
	// post-adjustment account. Concurrent deltas on one account are never lost.
	// Returns ErrInsufficientBalance if the result would be negative and
	// ErrAccountNotFound if the account doesn't exist.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*Account, error)
}

// TransactionLog defines durable append/finalize storage of transfer records.
type TransactionLog interface {
	// Create persists a new record and returns its identifier.
	Create(ctx context.Context, record *TransferRecord) (string, error)

	// Finalize moves a pending record to a terminal status.
	// Finalizing twice with the same status is a no-op; with a different one it
	// returns ErrAlreadyFinalized. Unknown ids return ErrTransferNotFound.
	Finalize(ctx context.Context, id string, status TransferStatus) error

	// Get retrieves a record by identifier.
	Get(ctx context.Context, id string) (*TransferRecord, error)

	// Query returns up to limit records naming the participant as source or
	// destination, newest first.
	Query(ctx context.Context, participantID string, limit int) ([]*TransferRecord, error)

	// ListPending returns up to limit records still pending that were created
	// before olderThan, oldest first.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*TransferRecord, error)
}

// EventPublisher publishes transfer outcomes to external systems (e.g. RabbitMQ).
type EventPublisher interface {
	PublishTransferFinalized(ctx context.Context, record *TransferRecord, reconciliationRequired bool) error
}

// TransferObserver receives the outcome and latency of every transfer attempt.
type TransferObserver interface {
	ObserveTransfer(outcome string, elapsed time.Duration)
}

// Pinger reports store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

const transferColumns = `id, source_id, destination_id, amount::text, status, settlement_ref, created_at, finalized_at`

var _ domain.TransactionLog = (*TransferRepository)(nil)

// TransferRepository implements domain.TransactionLog using PostgreSQL.
type TransferRepository struct {
	pool    *pgxpool.Pool
	tm      *TransactionManager
	timeout time.Duration
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool, tm *TransactionManager, timeout time.Duration) *TransferRepository {
	return &TransferRepository{
		pool:    pool,
		tm:      tm,
		timeout: timeout,
	}
}

// Create persists a new pending transfer record.
func (r *TransferRepository) Create(ctx context.Context, record *domain.TransferRecord) (string, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO transfers (
			id, source_id, destination_id,
			amount, status, settlement_ref,
			created_at, finalized_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		RETURNING id
	`

	var id string
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		record.ID,
		record.SourceID,
		record.DestinationID,
		record.Amount.String(),
		string(record.Status),
		record.SettlementRef,
		record.CreatedAt,
		record.FinalizedAt,
	).Scan(&id)
	if err != nil {
		if isPgUniqueViolation(err) {
			return "", fmt.Errorf("duplicate transfer id %s: %w", record.ID, err)
		}
		return "", unavailable("create transfer", err)
	}

	return id, nil
}

// Finalize moves a pending record to a terminal status. The row is locked
// for the check-and-set so concurrent finalizers serialize.
func (r *TransferRepository) Finalize(ctx context.Context, id string, status domain.TransferStatus) error {
	if !status.IsTerminal() {
		return domain.ErrInvalidStatus
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	return r.tm.WithTransaction(ctx, func(ctx context.Context) error {
		tx := conn(ctx, r.pool)

		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM transfers WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
			}
			return unavailable("lock transfer", err)
		}

		record := domain.TransferRecord{ID: id, Status: domain.TransferStatus(current)}
		done, err := record.CanFinalize(status)
		if err != nil || done {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE transfers SET status = $2, finalized_at = NOW() WHERE id = $1`,
			id, string(status),
		)
		if err != nil {
			return unavailable("finalize transfer", err)
		}
		return nil
	})
}

// Get retrieves a transfer record by its identifier.
func (r *TransferRepository) Get(ctx context.Context, id string) (*domain.TransferRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	record, err := scanTransfer(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
		}
		return nil, unavailable("get transfer", err)
	}
	return record, nil
}

// Query returns records where the participant is source or destination, newest first.
func (r *TransferRepository) Query(ctx context.Context, participantID string, limit int) ([]*domain.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE source_id = $1 OR destination_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, "query transfers", query, participantID, limit)
}

// ListPending returns records still pending that were created before olderThan, oldest first.
func (r *TransferRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.list(ctx, "list pending transfers", query, olderThan, limit)
}

func (r *TransferRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.TransferRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var records []*domain.TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	return records, nil
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	var record domain.TransferRecord
	var amount, status string

	err := row.Scan(
		&record.ID,
		&record.SourceID,
		&record.DestinationID,
		&amount,
		&status,
		&record.SettlementRef,
		&record.CreatedAt,
		&record.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	record.Status = domain.TransferStatus(status)
	return &record, nil
}

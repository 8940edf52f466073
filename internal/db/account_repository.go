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

const accountColumns = `id, name, contact, balance::text, created_at, updated_at`

var _ domain.AccountStore = (*AccountRepository)(nil)

// AccountRepository implements domain.AccountStore using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewAccountRepository creates a new AccountRepository.
// timeout bounds every call; zero disables it.
func NewAccountRepository(pool *pgxpool.Pool, timeout time.Duration) *AccountRepository {
	return &AccountRepository{
		pool:    pool,
		timeout: timeout,
	}
}

// Create inserts a new account. The primary key rejects a duplicate identifier.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO accounts (id, name, contact, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		account.ID,
		account.Name,
		account.Contact,
		account.Balance.String(),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, account.ID)
		}
		return unavailable("create account", err)
	}

	return nil
}

// Get retrieves an account by its identifier.
func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, unavailable("get account", err)
	}

	return account, nil
}

// AdjustBalance applies delta in a single conditional statement, so the
// non-negative check and the write can't interleave with another adjustment.
func (r *AccountRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*domain.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE accounts
		SET balance = balance + $2::numeric,
		    updated_at = NOW()
		WHERE id = $1 AND balance + $2::numeric >= 0
		RETURNING ` + accountColumns

	q := conn(ctx, r.pool)
	account, err := scanAccount(q.QueryRow(ctx, query, id, delta.String()))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, unavailable("adjust balance", err)
	}

	// No row updated: either the account is missing or the guard rejected the delta.
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, unavailable("adjust balance", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientBalance, id)
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var balance string

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Contact,
		&balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", balance, err)
	}
	return &account, nil
}

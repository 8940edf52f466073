package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

// AccountRepository is an in-process domain.AccountStore.
// Each account carries its own mutex held across read-check-write, so
// adjustments to disjoint accounts never block each other.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*accountEntry
}

type accountEntry struct {
	mu      sync.Mutex
	account domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*accountEntry),
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", domain.ErrAccountAlreadyExists, account.ID)
	}

	r.accounts[account.ID] = &accountEntry{account: *account}
	return nil
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	account := entry.account
	return &account, nil
}

func (r *AccountRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}

	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	balance := entry.account.Balance.Add(delta)
	if balance.IsNegative() {
		return nil, fmt.Errorf("%w: account %s", domain.ErrInsufficientBalance, id)
	}

	entry.account.Balance = balance
	entry.account.UpdatedAt = time.Now().UTC()

	account := entry.account
	return &account, nil
}

// Ping always succeeds for the in-process store.
func (r *AccountRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *AccountRepository) entry(id string) (*accountEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", domain.ErrAccountNotFound, id)
	}
	return entry, nil
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountService handles registration and balance lookups.
type AccountService struct {
	accounts AccountStore
	logger   *zap.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts AccountStore, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{accounts: accounts, logger: logger}
}

// Register creates an account whose identifier is derived from name and contact.
// The derived identifier is only a candidate key: it is checked against the
// store before insert, and the store's unique key rejects a concurrent duplicate.
func (s *AccountService) Register(ctx context.Context, name, contact string) (*Account, error) {
	id, err := DeriveAccountID(name, contact)
	if err != nil {
		return nil, err
	}

	_, err = s.accounts.Get(ctx, id)
	switch {
	case err == nil:
		return nil, ErrAccountAlreadyExists
	case !errors.Is(err, ErrAccountNotFound):
		return nil, fmt.Errorf("failed to check account %s: %w", id, err)
	}

	account := NewAccount(id, strings.TrimSpace(name), strings.TrimSpace(contact))
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountAlreadyExists) {
			return nil, ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("failed to create account %s: %w", id, err)
	}

	s.logger.Info("account registered", zap.String("account_id", id))
	return account, nil
}

// Account retrieves an account profile.
func (s *AccountService) Account(ctx context.Context, id string) (*Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidAccountDetails
	}
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// Balance retrieves the current balance of an account.
func (s *AccountService) Balance(ctx context.Context, id string) (decimal.Decimal, error) {
	account, err := s.Account(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

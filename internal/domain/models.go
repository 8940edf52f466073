package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a ledger participant.
// The balance is owned by the AccountStore; only the TransferEngine writes deltas to it.
type Account struct {
	ID        string          // Derived identifier, e.g. "alice@1234"
	Name      string          // Display name given at registration
	Contact   string          // Contact string (mobile number) the identifier suffix comes from
	Balance   decimal.Decimal // Current balance, never negative in committed state
	CreatedAt time.Time       // Timestamp when the account was registered
	UpdatedAt time.Time       // Timestamp of the last balance change
}

// TransferRecord is the auditable record of a single transfer attempt.
type TransferRecord struct {
	ID            string          // Unique identifier of the transfer
	SourceID      string          // Account debited
	DestinationID string          // Account credited
	Amount        decimal.Decimal // Strictly positive amount
	Status        TransferStatus  // pending -> success | failed
	CreatedAt     time.Time       // Timestamp when the intent was recorded
	SettlementRef *string         // External settlement reference (nullable)
	FinalizedAt   *time.Time      // Timestamp when the record reached a terminal status (nullable)
}

// TransferStatus represents the lifecycle state of a TransferRecord.
type TransferStatus string

const (
	// TransferStatusPending indicates the intent was recorded and balances may be in flight
	TransferStatusPending TransferStatus = "pending"

	// TransferStatusSuccess indicates both balance adjustments were applied
	TransferStatusSuccess TransferStatus = "success"

	// TransferStatusFailed indicates the transfer did not apply (after compensation if needed)
	TransferStatusFailed TransferStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusSuccess || s == TransferStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s TransferStatus) Valid() bool {
	return s == TransferStatusPending || s.IsTerminal()
}

// NewAccount creates a new Account with a zero balance.
func NewAccount(id, name, contact string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Name:      name,
		Contact:   contact,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTransferRecord creates a new TransferRecord in pending status.
func NewTransferRecord(sourceID, destinationID string, amount decimal.Decimal) *TransferRecord {
	return &TransferRecord{
		ID:            uuid.NewString(),
		SourceID:      sourceID,
		DestinationID: destinationID,
		Amount:        amount,
		Status:        TransferStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// Involves reports whether the account is the source or destination of the record.
func (r *TransferRecord) Involves(accountID string) bool {
	return r.SourceID == accountID || r.DestinationID == accountID
}

// CanFinalize checks a status transition against the record's current status.
// It returns done=true when the record already holds the requested terminal status.
func (r *TransferRecord) CanFinalize(status TransferStatus) (done bool, err error) {
	if !status.IsTerminal() {
		return false, ErrInvalidStatus
	}
	switch {
	case r.Status == status:
		return true, nil
	case r.Status.IsTerminal():
		return false, ErrAlreadyFinalized
	default:
		return false, nil
	}
}

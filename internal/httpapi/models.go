package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message   string `json:"message"`
	AccountID string `json:"account_id"`
}

// ProfileResponse describes the caller's account.
type ProfileResponse struct {
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// BalanceResponse carries the caller's balance.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// TransferRequest is the body of POST /api/transactions/send.
// Amount accepts both JSON numbers and strings.
type TransferRequest struct {
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// TransferResponse is returned for a completed transfer.
type TransferResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Transaction is one entry of the caller's history.
type Transaction struct {
	ID            string     `json:"id"`
	SourceID      string     `json:"source_id"`
	DestinationID string     `json:"destination_id"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	Direction     string     `json:"direction"`
	CreatedAt     time.Time  `json:"created_at"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
}

// HistoryResponse wraps the caller's transactions, newest first.
type HistoryResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// HealthResponse reports store connectivity.
type HealthResponse struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountScale)
}

func newTransaction(record *domain.TransferRecord, caller string) Transaction {
	direction := "received"
	if record.SourceID == caller {
		direction = "sent"
	}
	return Transaction{
		ID:            record.ID,
		SourceID:      record.SourceID,
		DestinationID: record.DestinationID,
		Amount:        formatAmount(record.Amount),
		Status:        string(record.Status),
		Direction:     direction,
		CreatedAt:     record.CreatedAt,
		FinalizedAt:   record.FinalizedAt,
	}
}

package domain

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultHistoryLimit is used when the caller doesn't ask for a limit.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit bounds a single history page.
	MaxHistoryLimit = 100
)

// HistoryQuery is a read-only projection over the TransactionLog.
type HistoryQuery struct {
	log TransactionLog
}

// NewHistoryQuery creates a new HistoryQuery.
func NewHistoryQuery(log TransactionLog) *HistoryQuery {
	return &HistoryQuery{log: log}
}

// History returns the participant's transfer records, newest first.
// Records are returned as stored even if the counterparty account no longer resolves.
func (q *HistoryQuery) History(ctx context.Context, participantID string, limit int) ([]*TransferRecord, error) {
	if strings.TrimSpace(participantID) == "" {
		return nil, ErrInvalidAccountDetails
	}

	records, err := q.log.Query(ctx, participantID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer history: %w", err)
	}
	return records, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

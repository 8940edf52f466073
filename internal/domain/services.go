package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transfer outcomes reported to the TransferObserver.
const (
	OutcomeSuccess            = "success"
	OutcomeFailed             = "failed"
	OutcomeCompensationFailed = "compensation_failed"
	OutcomeRejected           = "rejected"
)

// TransferEngine orchestrates a single balance transfer between two accounts.
// It records intent in the TransactionLog before touching balances, debits
// before it credits, and reverses the debit if the credit fails.
type TransferEngine struct {
	accounts AccountStore
	log      TransactionLog
	// Optional event publisher to emit transfer outcomes
	publisher EventPublisher
	observer  TransferObserver
	logger    *zap.Logger
}

// EngineOption configures optional collaborators of a TransferEngine.
type EngineOption func(*TransferEngine)

// WithEventPublisher sets the publisher notified after every finalized transfer.
func WithEventPublisher(p EventPublisher) EngineOption {
	return func(e *TransferEngine) { e.publisher = p }
}

// WithObserver sets the observer receiving transfer outcomes and latency.
func WithObserver(o TransferObserver) EngineOption {
	return func(e *TransferEngine) { e.observer = o }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *TransferEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewTransferEngine creates a new instance of TransferEngine.
func NewTransferEngine(accounts AccountStore, log TransactionLog, opts ...EngineOption) *TransferEngine {
	e := &TransferEngine{
		accounts: accounts,
		log:      log,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer moves amount from source to destination.
//
// Preconditions are checked in order and reported without any mutation:
// ErrInvalidAmount, ErrRecipientNotFound, ErrInsufficientBalance.
// Source and destination may be the same account.
//
// Once the pending record is written:
//  1. debit source; on failure finalize failed and return *TransferFailedError
//  2. credit destination; on failure reverse the debit, finalize failed and
//     return *TransferFailedError, or *CompensationFailedError if the reversal failed
//  3. finalize success and return the record
func (e *TransferEngine) Transfer(ctx context.Context, sourceID, destinationID string, amount decimal.Decimal) (*TransferRecord, error) {
	start := time.Now()

	record, outcome, err := e.transfer(ctx, sourceID, destinationID, amount)
	if e.observer != nil {
		e.observer.ObserveTransfer(outcome, time.Since(start))
	}
	return record, err
}

func (e *TransferEngine) transfer(ctx context.Context, sourceID, destinationID string, amount decimal.Decimal) (*TransferRecord, string, error) {
	if err := e.checkPreconditions(ctx, sourceID, destinationID, amount); err != nil {
		return nil, OutcomeRejected, err
	}

	record := NewTransferRecord(sourceID, destinationID, amount)
	if _, err := e.log.Create(ctx, record); err != nil {
		return nil, OutcomeRejected, fmt.Errorf("failed to record transfer intent: %w", err)
	}

	// The intent is recorded: from here on the engine completes or compensates
	// regardless of caller cancellation. Store calls keep their own timeouts.
	commitCtx := context.WithoutCancel(ctx)

	logger := e.logger.With(
		zap.String("transfer_id", record.ID),
		zap.String("source", sourceID),
		zap.String("destination", destinationID),
		zap.String("amount", amount.String()),
	)

	if _, err := e.accounts.AdjustBalance(commitCtx, sourceID, amount.Neg()); err != nil {
		logger.Warn("debit failed", zap.Error(err))
		e.finalize(commitCtx, logger, record, TransferStatusFailed, false)
		return nil, OutcomeFailed, &TransferFailedError{TransferID: record.ID, Cause: err}
	}

	if _, err := e.accounts.AdjustBalance(commitCtx, destinationID, amount); err != nil {
		logger.Warn("credit failed, reversing debit", zap.Error(err))

		if _, compErr := e.accounts.AdjustBalance(commitCtx, sourceID, amount); compErr != nil {
			logger.Error("compensation failed, ledger requires reconciliation",
				zap.Error(err),
				zap.NamedError("compensation_error", compErr),
			)
			e.finalize(commitCtx, logger, record, TransferStatusFailed, true)
			return nil, OutcomeCompensationFailed, &CompensationFailedError{
				TransferID:        record.ID,
				Cause:             err,
				CompensationCause: compErr,
			}
		}

		e.finalize(commitCtx, logger, record, TransferStatusFailed, false)
		return nil, OutcomeFailed, &TransferFailedError{TransferID: record.ID, Cause: err}
	}

	if err := e.log.Finalize(commitCtx, record.ID, TransferStatusSuccess); err != nil {
		logger.Error("balances moved but transfer could not be finalized", zap.Error(err))
		return nil, OutcomeFailed, fmt.Errorf("failed to finalize transfer %s: %w", record.ID, err)
	}
	markFinalized(record, TransferStatusSuccess)

	logger.Info("transfer completed")
	e.publish(record, false)

	return record, OutcomeSuccess, nil
}

func (e *TransferEngine) checkPreconditions(ctx context.Context, sourceID, destinationID string, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}

	if _, err := e.accounts.Get(ctx, destinationID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrRecipientNotFound
		}
		return fmt.Errorf("failed to get recipient account: %w", err)
	}

	source, err := e.accounts.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to get source account: %w", err)
	}
	if source.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	return nil
}

// finalize records a failed outcome. A failure here leaves the record pending
// for the stale-pending sweeper; the transfer error is still returned to the caller.
func (e *TransferEngine) finalize(ctx context.Context, logger *zap.Logger, record *TransferRecord, status TransferStatus, reconciliationRequired bool) {
	if err := e.log.Finalize(ctx, record.ID, status); err != nil {
		logger.Error("failed to finalize transfer record",
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	markFinalized(record, status)
	e.publish(record, reconciliationRequired)
}

// publish emits the outcome asynchronously. Publish errors are only logged.
func (e *TransferEngine) publish(record *TransferRecord, reconciliationRequired bool) {
	if e.publisher == nil {
		return
	}
	snapshot := *record
	go func() {
		if err := e.publisher.PublishTransferFinalized(context.Background(), &snapshot, reconciliationRequired); err != nil {
			e.logger.Warn("failed to publish transfer event",
				zap.String("transfer_id", snapshot.ID),
				zap.Error(err),
			)
		}
	}()
}

func markFinalized(record *TransferRecord, status TransferStatus) {
	now := time.Now().UTC()
	record.Status = status
	record.FinalizedAt = &now
}

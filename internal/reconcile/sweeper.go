package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

const sweepBatchSize = 100

// StaleGauge receives the number of stale pending records found by a sweep.
type StaleGauge interface {
	SetStalePending(count int)
}

// Sweeper reports transfer records that stayed pending past a threshold.
// A stale pending record means the engine stopped between writing the intent
// and finalizing it, so balances may need manual reconciliation. The sweeper
// only reports; it never changes records or balances.
type Sweeper struct {
	log        domain.TransactionLog
	gauge      StaleGauge
	staleAfter time.Duration
	interval   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewSweeper creates a new Sweeper. gauge may be nil.
func NewSweeper(log domain.TransactionLog, gauge StaleGauge, staleAfter, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		log:        log,
		gauge:      gauge,
		staleAfter: staleAfter,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("stale pending sweeper started",
		zap.Duration("stale_after", s.staleAfter),
		zap.Duration("interval", s.interval),
	)

	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn("stale pending sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("stale pending sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs a single pass and returns the stale records found.
func (s *Sweeper) Sweep(ctx context.Context) ([]*domain.TransferRecord, error) {
	cutoff := s.now().Add(-s.staleAfter)

	records, err := s.log.ListPending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}

	if s.gauge != nil {
		s.gauge.SetStalePending(len(records))
	}

	for _, record := range records {
		s.logger.Warn("transfer left pending, reconciliation required",
			zap.String("transfer_id", record.ID),
			zap.String("source", record.SourceID),
			zap.String("destination", record.DestinationID),
			zap.String("amount", record.Amount.String()),
			zap.Time("created_at", record.CreatedAt),
			zap.Duration("age", s.now().Sub(record.CreatedAt)),
		)
	}

	return records, nil
}

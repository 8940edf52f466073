package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
	"github.com/HarshalNinawe/technoupi2/internal/memory"
)

type fakeGauge struct {
	value int
	calls int
}

func (g *fakeGauge) SetStalePending(count int) {
	g.value = count
	g.calls++
}

func TestSweeper_ReportsStalePendingOnly(t *testing.T) {
	ctx := context.Background()
	log := memory.NewTransferRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	stale := domain.NewTransferRecord("alice@1234", "bob@5678", decimal.NewFromInt(5))
	stale.CreatedAt = now.Add(-10 * time.Minute)
	_, err := log.Create(ctx, stale)
	require.NoError(t, err)

	fresh := domain.NewTransferRecord("alice@1234", "bob@5678", decimal.NewFromInt(5))
	fresh.CreatedAt = now.Add(-time.Minute)
	_, err = log.Create(ctx, fresh)
	require.NoError(t, err)

	done := domain.NewTransferRecord("alice@1234", "bob@5678", decimal.NewFromInt(5))
	done.CreatedAt = now.Add(-time.Hour)
	_, err = log.Create(ctx, done)
	require.NoError(t, err)
	require.NoError(t, log.Finalize(ctx, done.ID, domain.TransferStatusSuccess))

	core, logs := observer.New(zap.WarnLevel)
	gauge := &fakeGauge{}
	sweeper := NewSweeper(log, gauge, 5*time.Minute, time.Minute, zap.New(core))
	sweeper.now = func() time.Time { return now }

	records, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, stale.ID, records[0].ID)
	assert.Equal(t, 1, gauge.value)

	entries := logs.FilterMessage("transfer left pending, reconciliation required").All()
	require.Len(t, entries, 1)
	assert.Equal(t, stale.ID, entries[0].ContextMap()["transfer_id"])

	// The sweep never finalizes anything.
	stored, err := log.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, stored.Status)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	gauge := &fakeGauge{}
	sweeper := NewSweeper(memory.NewTransferRepository(), gauge, time.Minute, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.GreaterOrEqual(t, gauge.calls, 1)
}

package mongostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
	"github.com/HarshalNinawe/technoupi2/internal/mongostore"
)

// setupMongoContainer starts a disposable MongoDB 7 container and returns
// the connection string.
func setupMongoContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := tcmongo.Run(ctx,
		"mongo:7",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate mongo container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return endpoint
}

func TestMongoLedgerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	uri := setupMongoContainer(t)

	client, err := mongostore.NewClient(ctx, mongostore.Config{
		URI:      uri,
		Database: "ledger_test",
		Timeout:  5 * time.Second,
	}, nil)
	require.NoError(t, err)
	defer func() { _ = client.Close(ctx) }()

	require.NoError(t, client.EnsureIndexes(ctx))
	require.NoError(t, client.Ping(ctx))

	accounts := client.Accounts()
	transfers := client.Transfers()

	alice := domain.NewAccount("alice@1234", "alice", "1234")
	alice.Balance = decimal.RequireFromString("1000.00")
	require.NoError(t, accounts.Create(ctx, alice))
	require.NoError(t, accounts.Create(ctx, domain.NewAccount("bob@5678", "bob", "5678")))

	assert.ErrorIs(t, accounts.Create(ctx, alice), domain.ErrAccountAlreadyExists)

	_, err = accounts.AdjustBalance(ctx, "bob@5678", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = accounts.AdjustBalance(ctx, "ghost@0000", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	engine := domain.NewTransferEngine(accounts, transfers)
	record, err := engine.Transfer(ctx, "alice@1234", "bob@5678", decimal.RequireFromString("100.50"))
	require.NoError(t, err)

	got, err := accounts.Get(ctx, "alice@1234")
	require.NoError(t, err)
	assert.Equal(t, "899.50", got.Balance.StringFixed(2))

	got, err = accounts.Get(ctx, "bob@5678")
	require.NoError(t, err)
	assert.Equal(t, "100.50", got.Balance.StringFixed(2))

	stored, err := transfers.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusSuccess, stored.Status)

	require.NoError(t, transfers.Finalize(ctx, record.ID, domain.TransferStatusSuccess))
	assert.ErrorIs(t, transfers.Finalize(ctx, record.ID, domain.TransferStatusFailed), domain.ErrAlreadyFinalized)
	assert.ErrorIs(t, transfers.Finalize(ctx, "missing", domain.TransferStatusFailed), domain.ErrTransferNotFound)

	pending := domain.NewTransferRecord("alice@1234", "bob@5678", decimal.NewFromInt(1))
	pending.CreatedAt = time.Now().UTC().Add(-time.Hour)
	_, err = transfers.Create(ctx, pending)
	require.NoError(t, err)

	stale, err := transfers.ListPending(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, pending.ID, stale[0].ID)

	history, err := transfers.Query(ctx, "bob@5678", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, record.ID, history[0].ID)
}

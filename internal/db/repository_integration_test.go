package db_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/HarshalNinawe/technoupi2/internal/db"
	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

// TestPostgresLedgerIntegration runs the stores and the transfer engine
// against a real PostgreSQL container.
func TestPostgresLedgerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, dbURL := startPostgresContainer(t, ctx)
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}()

	pool, err := db.NewPool(ctx, dbURL, 10)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, db.Migrate(ctx, pool))

	tm := db.NewTransactionManager(pool.Pool, nil)
	accounts := db.NewAccountRepository(pool.Pool, 5*time.Second)
	transfers := db.NewTransferRepository(pool.Pool, tm, 5*time.Second)

	t.Run("accounts", func(t *testing.T) {
		account := domain.NewAccount("erin@4321", "erin", "4321")
		require.NoError(t, accounts.Create(ctx, account))

		err := accounts.Create(ctx, account)
		assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

		_, err = accounts.Get(ctx, "ghost@0000")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)

		_, err = accounts.AdjustBalance(ctx, "erin@4321", decimal.RequireFromString("-0.01"))
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		_, err = accounts.AdjustBalance(ctx, "ghost@0000", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)

		updated, err := accounts.AdjustBalance(ctx, "erin@4321", decimal.RequireFromString("12.34"))
		require.NoError(t, err)
		assert.Equal(t, "12.34", updated.Balance.StringFixed(2))
	})

	t.Run("finalize", func(t *testing.T) {
		record := domain.NewTransferRecord("erin@4321", "frank@8765", decimal.NewFromInt(1))
		id, err := transfers.Create(ctx, record)
		require.NoError(t, err)

		require.NoError(t, transfers.Finalize(ctx, id, domain.TransferStatusFailed))
		require.NoError(t, transfers.Finalize(ctx, id, domain.TransferStatusFailed))
		assert.ErrorIs(t, transfers.Finalize(ctx, id, domain.TransferStatusSuccess), domain.ErrAlreadyFinalized)
		assert.ErrorIs(t, transfers.Finalize(ctx, "missing", domain.TransferStatusSuccess), domain.ErrTransferNotFound)

		stored, err := transfers.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TransferStatusFailed, stored.Status)
		assert.NotNil(t, stored.FinalizedAt)
	})

	t.Run("transfer engine", func(t *testing.T) {
		createAccount(t, ctx, accounts, "alice@1234", "1000.00")
		createAccount(t, ctx, accounts, "bob@5678", "500.00")

		engine := domain.NewTransferEngine(accounts, transfers)

		record, err := engine.Transfer(ctx, "alice@1234", "bob@5678", decimal.RequireFromString("100.50"))
		require.NoError(t, err)
		assert.Equal(t, domain.TransferStatusSuccess, record.Status)

		alice, err := accounts.Get(ctx, "alice@1234")
		require.NoError(t, err)
		assert.Equal(t, "899.50", alice.Balance.StringFixed(2))

		bob, err := accounts.Get(ctx, "bob@5678")
		require.NoError(t, err)
		assert.Equal(t, "600.50", bob.Balance.StringFixed(2))

		_, err = engine.Transfer(ctx, "alice@1234", "bob@5678", decimal.RequireFromString("5000"))
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		history, err := domain.NewHistoryQuery(transfers).History(ctx, "bob@5678", 0)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, record.ID, history[0].ID)
		assert.Equal(t, "100.5", history[0].Amount.String())
	})

	t.Run("concurrent debits", func(t *testing.T) {
		createAccount(t, ctx, accounts, "carol@1111", "10.00")
		createAccount(t, ctx, accounts, "dave@2222", "0")

		engine := domain.NewTransferEngine(accounts, transfers)

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.Transfer(ctx, "carol@1111", "dave@2222", decimal.NewFromInt(1))
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else if !errors.Is(err, domain.ErrInsufficientBalance) && !errors.Is(err, domain.ErrTransferFailed) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, succeeded)

		carol, err := accounts.Get(ctx, "carol@1111")
		require.NoError(t, err)
		assert.True(t, carol.Balance.IsZero(), "got %s", carol.Balance)

		pending, err := transfers.ListPending(ctx, time.Now().Add(time.Minute), 100)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func createAccount(t *testing.T, ctx context.Context, accounts *db.AccountRepository, id, balance string) {
	t.Helper()
	account := domain.NewAccount(id, id, "0000")
	account.Balance = decimal.RequireFromString(balance)
	require.NoError(t, accounts.Create(ctx, account))
}

// startPostgresContainer starts a PostgreSQL testcontainer and returns the connection URL.
func startPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get postgres port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	return container, dbURL
}

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
	"github.com/HarshalNinawe/technoupi2/internal/httpapi"
	"github.com/HarshalNinawe/technoupi2/internal/idempotency"
	"github.com/HarshalNinawe/technoupi2/internal/memory"
	"github.com/HarshalNinawe/technoupi2/internal/metrics"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler  http.Handler
	accounts *memory.AccountRepository
}

func newTestServer(t *testing.T, opts httpapi.RouterOptions, pinger domain.Pinger) *testServer {
	t.Helper()

	accounts := memory.NewAccountRepository()
	log := memory.NewTransferRepository()

	h := httpapi.NewHandler(
		domain.NewAccountService(accounts, nil),
		domain.NewTransferEngine(accounts, log),
		domain.NewHistoryQuery(log),
		pinger,
		nil,
	)

	return &testServer{
		handler:  httpapi.NewRouter(h, opts),
		accounts: accounts,
	}
}

func (s *testServer) seed(t *testing.T, id, balance string) {
	t.Helper()
	account := domain.NewAccount(id, id, "0000000000")
	account.Balance = decimal.RequireFromString(balance)
	require.NoError(t, s.accounts.Create(context.Background(), account))
}

func (s *testServer) do(method, path, caller string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(httpapi.HeaderAccountID, caller)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestRegisterAndProfile(t *testing.T) {
	s := newTestServer(t, httpapi.RouterOptions{}, stubPinger{})

	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":   "Alice Smith",
		"mobile": "9876541234",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	registered := decode[httpapi.RegisterResponse](t, rec)
	assert.Equal(t, "alicesmith@1234", registered.AccountID)

	rec = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":   "alice smith",
		"mobile": "1111111234",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(domain.KindAccountAlreadyExists), decode[httpapi.ErrorResponse](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/user/profile", "alicesmith@1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[httpapi.ProfileResponse](t, rec)
	assert.Equal(t, "Alice Smith", profile.Name)
	assert.Equal(t, "9876541234", profile.Mobile)
	assert.Equal(t, "0.00", profile.Balance)
}

func TestCallerRequired(t *testing.T) {
	s := newTestServer(t, httpapi.RouterOptions{}, stubPinger{})

	for _, path := range []string{"/api/user/profile", "/api/balance", "/api/transactions/history"} {
		rec := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := s.do(http.MethodGet, "/api/balance", "ghost@0000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decode[httpapi.ErrorResponse](t, rec)
	assert.Equal(t, string(domain.KindAccountNotFound), errResp.Code)
	assert.NotEmpty(t, errResp.ID)
}

func TestSend(t *testing.T) {
	tests := []struct {
		name         string
		body         any
		expectedCode int
		expectedKind string
		aliceBalance string
	}{
		{
			name:         "success with string amount",
			body:         map[string]any{"recipient_id": "bob@5678", "amount": "25.50"},
			expectedCode: http.StatusOK,
			aliceBalance: "74.50",
		},
		{
			name:         "success with numeric amount",
			body:         map[string]any{"recipient_id": "bob@5678", "amount": 10},
			expectedCode: http.StatusOK,
			aliceBalance: "90.00",
		},
		{
			name:         "invalid amount",
			body:         map[string]any{"recipient_id": "bob@5678", "amount": "0"},
			expectedCode: http.StatusBadRequest,
			expectedKind: string(domain.KindInvalidAmount),
			aliceBalance: "100.00",
		},
		{
			name:         "insufficient balance",
			body:         map[string]any{"recipient_id": "bob@5678", "amount": "100.01"},
			expectedCode: http.StatusBadRequest,
			expectedKind: string(domain.KindInsufficientBalance),
			aliceBalance: "100.00",
		},
		{
			name:         "unknown recipient",
			body:         map[string]any{"recipient_id": "nobody@0000", "amount": "1"},
			expectedCode: http.StatusNotFound,
			expectedKind: string(domain.KindRecipientNotFound),
			aliceBalance: "100.00",
		},
		{
			name:         "missing recipient",
			body:         map[string]any{"amount": "1"},
			expectedCode: http.StatusBadRequest,
			expectedKind: "INVALID_REQUEST",
			aliceBalance: "100.00",
		},
		{
			name:         "malformed amount",
			body:         map[string]any{"recipient_id": "bob@5678", "amount": "ten"},
			expectedCode: http.StatusBadRequest,
			expectedKind: "INVALID_REQUEST",
			aliceBalance: "100.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, httpapi.RouterOptions{}, stubPinger{})
			s.seed(t, "alice@1234", "100")
			s.seed(t, "bob@5678", "0")

			rec := s.do(http.MethodPost, "/api/transactions/send", "alice@1234", tt.body)
			require.Equal(t, tt.expectedCode, rec.Code, rec.Body.String())

			if tt.expectedKind != "" {
				assert.Equal(t, tt.expectedKind, decode[httpapi.ErrorResponse](t, rec).Code)
			} else {
				resp := decode[httpapi.TransferResponse](t, rec)
				assert.Equal(t, "success", resp.Status)
				assert.NotEmpty(t, resp.TransactionID)
			}

			rec = s.do(http.MethodGet, "/api/balance", "alice@1234", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.aliceBalance, decode[httpapi.BalanceResponse](t, rec).Balance)
		})
	}
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, httpapi.RouterOptions{}, stubPinger{})
	s.seed(t, "alice@1234", "100")
	s.seed(t, "bob@5678", "100")

	for i := 0; i < 3; i++ {
		rec := s.do(http.MethodPost, "/api/transactions/send", "alice@1234",
			map[string]any{"recipient_id": "bob@5678", "amount": "1"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(http.MethodPost, "/api/transactions/send", "bob@5678",
		map[string]any{"recipient_id": "alice@1234", "amount": "5"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/transactions/history", "alice@1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[httpapi.HistoryResponse](t, rec)
	require.Len(t, history.Transactions, 4)

	directions := map[string]int{}
	for _, tx := range history.Transactions {
		directions[tx.Direction]++
		assert.Equal(t, "success", tx.Status)
	}
	assert.Equal(t, 3, directions["sent"])
	assert.Equal(t, 1, directions["received"])

	rec = s.do(http.MethodGet, "/api/transactions/history?limit=2", "alice@1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[httpapi.HistoryResponse](t, rec).Transactions, 2)

	rec = s.do(http.MethodGet, "/api/transactions/history?limit=abc", "alice@1234", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, httpapi.RouterOptions{}, stubPinger{})
	rec := s.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[httpapi.HealthResponse](t, rec).DatabaseConnected)

	s = newTestServer(t, httpapi.RouterOptions{}, stubPinger{err: errors.New("down")})
	rec = s.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[httpapi.HealthResponse](t, rec).DatabaseConnected)
}

func TestSend_IdempotencyReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer(t, httpapi.RouterOptions{
		Idempotency: idempotency.NewStore(client, 0),
	}, stubPinger{})
	s.seed(t, "alice@1234", "100")
	s.seed(t, "bob@5678", "0")

	body := map[string]any{"recipient_id": "bob@5678", "amount": "30"}
	first := s.do(http.MethodPost, "/api/transactions/send", "alice@1234", body, idempotency.HeaderKey, "pay-1")
	require.Equal(t, http.StatusOK, first.Code)

	second := s.do(http.MethodPost, "/api/transactions/send", "alice@1234", body, idempotency.HeaderKey, "pay-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(idempotency.HeaderHit))
	assert.Equal(t,
		decode[httpapi.TransferResponse](t, first).TransactionID,
		decode[httpapi.TransferResponse](t, second).TransactionID,
	)

	rec := s.do(http.MethodGet, "/api/balance", "alice@1234", nil)
	assert.Equal(t, "70.00", decode[httpapi.BalanceResponse](t, rec).Balance)
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector()
	s := newTestServer(t, httpapi.RouterOptions{
		Metrics:  collector.Handler(),
		Observer: collector,
	}, stubPinger{})

	s.do(http.MethodGet, "/api/health", "", nil)

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledger_http_requests_total{code="200",route="/api/health"} 1`)
}

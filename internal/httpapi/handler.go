package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

const (
	maxBodyBytes       = 1 << 20
	healthCheckTimeout = 2 * time.Second
)

// Handler serves the ledger HTTP API.
type Handler struct {
	accounts *domain.AccountService
	engine   *domain.TransferEngine
	history  *domain.HistoryQuery
	store    domain.Pinger
	logger   *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(
	accounts *domain.AccountService,
	engine *domain.TransferEngine,
	history *domain.HistoryQuery,
	store domain.Pinger,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		accounts: accounts,
		engine:   engine,
		history:  history,
		store:    store,
		logger:   logger,
	}
}

// Register handles account registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Name, req.Mobile)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message:   "account registered successfully",
		AccountID: account.ID,
	})
}

// Profile returns the caller's account.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Account(r.Context(), callerFrom(r.Context()))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		AccountID: account.ID,
		Name:      account.Name,
		Mobile:    account.Contact,
		Balance:   formatAmount(account.Balance),
		CreatedAt: account.CreatedAt,
	})
}

// Balance returns the caller's balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())

	balance, err := h.accounts.Balance(r.Context(), caller)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		AccountID: caller,
		Balance:   formatAmount(balance),
	})
}

// Send transfers money from the caller to the recipient.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	recipient := strings.TrimSpace(req.RecipientID)
	if recipient == "" {
		sendErrorResponse(w, r, http.StatusBadRequest, "INVALID_REQUEST", "recipient_id is required")
		return
	}

	record, err := h.engine.Transfer(r.Context(), callerFrom(r.Context()), recipient, req.Amount)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TransferResponse{
		Message:       "transaction successful",
		TransactionID: record.ID,
		Status:        string(record.Status),
	})
}

// History returns the caller's transfers, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			sendErrorResponse(w, r, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer")
			return
		}
		limit = parsed
	}

	records, err := h.history.History(r.Context(), caller, limit)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	resp := HistoryResponse{Transactions: make([]Transaction, 0, len(records))}
	for _, record := range records {
		resp.Transactions = append(resp.Transactions, newTransaction(record, caller))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports whether the store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", DatabaseConnected: true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		sendErrorResponse(w, r, http.StatusBadRequest, "INVALID_REQUEST", "failed to parse request body: "+err.Error())
		return false
	}
	return true
}

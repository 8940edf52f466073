package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidAmount, domain.KindInvalidAccountDetails, domain.KindInsufficientBalance, domain.KindInvalidStatus:
		return http.StatusBadRequest
	case domain.KindRecipientNotFound, domain.KindAccountNotFound, domain.KindTransferNotFound:
		return http.StatusNotFound
	case domain.KindAccountAlreadyExists, domain.KindAlreadyFinalized:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleDomainError converts domain errors to HTTP responses.
// Internal details of 5xx errors are logged, not returned.
func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	switch kind {
	case domain.KindTransferFailed:
		message = "transaction failed"
	case domain.KindCompensationFailed:
		message = "transaction failed and requires reconciliation"
	case domain.KindUnavailable:
		message = "service temporarily unavailable"
	case domain.KindInternal:
		message = "an internal error occurred"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	sendErrorResponse(w, r, status, string(kind), message)
}

// sendErrorResponse sends an error response in the expected format
func sendErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	id := middleware.GetReqID(r.Context())
	if id == "" {
		id = uuid.NewString()
	}

	writeJSON(w, statusCode, ErrorResponse{
		Code:    code,
		Message: message,
		ID:      id,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

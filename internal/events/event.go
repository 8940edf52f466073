package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

// Routing keys under the transfers exchange.
const (
	RoutingKeySuccess                = "transfer.success"
	RoutingKeyFailed                 = "transfer.failed"
	RoutingKeyReconciliationRequired = "transfer.reconciliation_required"
)

// TransferFinalizedEvent is the payload published when a transfer record reaches a terminal status.
type TransferFinalizedEvent struct {
	EventID                string `json:"eventId"`
	EventType              string `json:"eventType"`
	EventTimestamp         string `json:"eventTimestamp"`
	TransferID             string `json:"transferId"`
	SourceID               string `json:"sourceId"`
	DestinationID          string `json:"destinationId"`
	Amount                 string `json:"amount"`
	Status                 string `json:"status"`
	CreatedAt              string `json:"createdAt"`
	ReconciliationRequired bool   `json:"reconciliationRequired"`
}

// NewTransferFinalizedEvent builds the event for record and returns it with its routing key.
func NewTransferFinalizedEvent(record *domain.TransferRecord, reconciliationRequired bool) (TransferFinalizedEvent, string) {
	routingKey := RoutingKeyFailed
	switch {
	case reconciliationRequired:
		routingKey = RoutingKeyReconciliationRequired
	case record.Status == domain.TransferStatusSuccess:
		routingKey = RoutingKeySuccess
	}

	return TransferFinalizedEvent{
		EventID:                uuid.NewString(),
		EventType:              routingKey,
		EventTimestamp:         time.Now().UTC().Format(time.RFC3339),
		TransferID:             record.ID,
		SourceID:               record.SourceID,
		DestinationID:          record.DestinationID,
		Amount:                 record.Amount.StringFixed(domain.AmountScale),
		Status:                 string(record.Status),
		CreatedAt:              record.CreatedAt.UTC().Format(time.RFC3339),
		ReconciliationRequired: reconciliationRequired,
	}, routingKey
}

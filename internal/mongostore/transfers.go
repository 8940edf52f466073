package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

var _ domain.TransactionLog = (*TransferRepository)(nil)

type transferDocument struct {
	ID            string               `bson:"_id"`
	SourceID      string               `bson:"source_id"`
	DestinationID string               `bson:"destination_id"`
	Amount        primitive.Decimal128 `bson:"amount"`
	Status        string               `bson:"status"`
	SettlementRef *string              `bson:"settlement_ref,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
	FinalizedAt   *time.Time           `bson:"finalized_at,omitempty"`
}

// TransferRepository implements domain.TransactionLog using MongoDB.
type TransferRepository struct {
	client *Client
	coll   *mongo.Collection
}

// Create persists a new pending transfer record.
func (r *TransferRepository) Create(ctx context.Context, record *domain.TransferRecord) (string, error) {
	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	amount, err := toDecimal128(record.Amount)
	if err != nil {
		return "", err
	}

	doc := transferDocument{
		ID:            record.ID,
		SourceID:      record.SourceID,
		DestinationID: record.DestinationID,
		Amount:        amount,
		Status:        string(record.Status),
		SettlementRef: record.SettlementRef,
		CreatedAt:     record.CreatedAt,
		FinalizedAt:   record.FinalizedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("duplicate transfer id %s: %w", record.ID, err)
		}
		return "", unavailable("create transfer", err)
	}
	return record.ID, nil
}

// Finalize moves a pending record to a terminal status with a conditional
// update; a record that is no longer pending is inspected to decide the outcome.
func (r *TransferRepository) Finalize(ctx context.Context, id string, status domain.TransferStatus) error {
	if !status.IsTerminal() {
		return domain.ErrInvalidStatus
	}

	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": id, "status": string(domain.TransferStatusPending)}
	update := bson.M{"$set": bson.M{
		"status":       string(status),
		"finalized_at": time.Now().UTC(),
	}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return unavailable("finalize transfer", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	var doc transferDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
		}
		return unavailable("finalize transfer", err)
	}

	record := domain.TransferRecord{ID: id, Status: domain.TransferStatus(doc.Status)}
	if _, err := record.CanFinalize(status); err != nil {
		return err
	}
	return nil
}

// Get retrieves a transfer record by its identifier.
func (r *TransferRepository) Get(ctx context.Context, id string) (*domain.TransferRecord, error) {
	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	var doc transferDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
		}
		return nil, unavailable("get transfer", err)
	}
	return doc.toDomain()
}

// Query returns records where the participant is source or destination, newest first.
func (r *TransferRepository) Query(ctx context.Context, participantID string, limit int) ([]*domain.TransferRecord, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"source_id": participantID},
		bson.M{"destination_id": participantID},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	return r.find(ctx, "query transfers", filter, opts)
}

// ListPending returns records still pending that were created before olderThan, oldest first.
func (r *TransferRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.TransferRecord, error) {
	filter := bson.M{
		"status":     string(domain.TransferStatusPending),
		"created_at": bson.M{"$lt": olderThan},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	return r.find(ctx, "list pending transfers", filter, opts)
}

func (r *TransferRepository) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*domain.TransferRecord, error) {
	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer cursor.Close(ctx)

	var docs []transferDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, unavailable(op, err)
	}

	records := make([]*domain.TransferRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (d transferDocument) toDomain() (*domain.TransferRecord, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}

	record := &domain.TransferRecord{
		ID:            d.ID,
		SourceID:      d.SourceID,
		DestinationID: d.DestinationID,
		Amount:        amount,
		Status:        domain.TransferStatus(d.Status),
		CreatedAt:     d.CreatedAt.UTC(),
		SettlementRef: d.SettlementRef,
	}
	if d.FinalizedAt != nil {
		finalizedAt := d.FinalizedAt.UTC()
		record.FinalizedAt = &finalizedAt
	}
	return record, nil
}

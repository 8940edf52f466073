package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

var _ domain.AccountStore = (*AccountRepository)(nil)

type accountDocument struct {
	ID        string               `bson:"_id"`
	Name      string               `bson:"name"`
	Contact   string               `bson:"contact"`
	Balance   primitive.Decimal128 `bson:"balance"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

// AccountRepository implements domain.AccountStore using MongoDB.
type AccountRepository struct {
	client *Client
	coll   *mongo.Collection
}

// Create inserts a new account. The _id index rejects a duplicate identifier.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	balance, err := toDecimal128(account.Balance)
	if err != nil {
		return err
	}

	doc := accountDocument{
		ID:        account.ID,
		Name:      account.Name,
		Contact:   account.Contact,
		Balance:   balance,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, account.ID)
		}
		return unavailable("create account", err)
	}
	return nil
}

// Get retrieves an account by its identifier.
func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	var doc accountDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, unavailable("get account", err)
	}
	return doc.toDomain()
}

// AdjustBalance applies delta with a single guarded $inc. The filter only
// matches when the resulting balance stays non-negative.
func (r *AccountRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*domain.Account, error) {
	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	inc, err := toDecimal128(delta)
	if err != nil {
		return nil, err
	}
	floor, err := toDecimal128(delta.Neg())
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": id, "balance": bson.M{"$gte": floor}}
	update := bson.M{
		"$inc": bson.M{"balance": inc},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDocument
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain()
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, unavailable("adjust balance", err)
	}

	// No document matched: either the account is missing or the guard rejected the delta.
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, unavailable("adjust balance", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientBalance, id)
}

func (d accountDocument) toDomain() (*domain.Account, error) {
	balance, err := fromDecimal128(d.Balance)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:        d.ID,
		Name:      d.Name,
		Contact:   d.Contact,
		Balance:   balance,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	value, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("invalid decimal %s: %w", d, err)
	}
	return value, nil
}

func fromDecimal128(value primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %s: %w", value, err)
	}
	return d, nil
}

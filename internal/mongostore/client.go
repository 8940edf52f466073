package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

const (
	accountsCollection  = "accounts"
	transfersCollection = "transfers"

	defaultServerSelectionTimeout = 5 * time.Second
)

var (
	// ErrEmptyURI is returned when Mongo URI is empty.
	ErrEmptyURI = errors.New("mongo uri cannot be empty")
	// ErrEmptyDatabaseName is returned when database name is empty.
	ErrEmptyDatabaseName = errors.New("database name cannot be empty")
)

// Config defines MongoDB connection and pool behavior.
type Config struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
	// Timeout bounds every store call; zero disables it.
	Timeout time.Duration
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.URI) == "" {
		return ErrEmptyURI
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return ErrEmptyDatabaseName
	}
	return nil
}

// Client owns the MongoDB connection shared by the account and transfer stores.
type Client struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient validates config, connects to MongoDB and pings the primary.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(cfg.URI)

	serverSelectionTimeout := cfg.ServerSelectionTimeout
	if serverSelectionTimeout <= 0 {
		serverSelectionTimeout = defaultServerSelectionTimeout
	}
	clientOptions.SetServerSelectionTimeout(serverSelectionTimeout)

	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	logger.Info("connected to mongodb", zap.String("database", cfg.Database))

	return &Client{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Ping checks the connection to the primary.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Ping(ctx, nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect failed: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes the transfer queries rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "destination_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{"status": string(domain.TransferStatusPending)}),
		},
	}

	if _, err := c.db.Collection(transfersCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo create index failed: %w", err)
	}
	return nil
}

// Accounts returns the account store backed by this client.
func (c *Client) Accounts() *AccountRepository {
	return &AccountRepository{client: c, coll: c.db.Collection(accountsCollection)}
}

// Transfers returns the transaction log backed by this client.
func (c *Client) Transfers() *TransferRepository {
	return &TransferRepository{client: c, coll: c.db.Collection(transfersCollection)}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// unavailable wraps driver failures so callers see domain.ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrUnavailable, op, err)
}

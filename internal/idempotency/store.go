package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "idempotency:"
	lockTTL   = 30 * time.Second
)

// Response is a stored HTTP response replayed for a repeated key.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	// RequestHash fingerprints the request body the response was produced for.
	RequestHash string `json:"request_hash,omitempty"`
}

// Store keeps responses keyed by caller and idempotency key in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Store. Responses expire after ttl.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Key builds the Redis key for a caller-scoped idempotency key.
func Key(caller, key string) string {
	return keyPrefix + caller + ":" + key
}

// Get returns the stored response for key, or nil when none exists.
func (s *Store) Get(ctx context.Context, key string) (*Response, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotent response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode idempotent response: %w", err)
	}
	return &resp, nil
}

// Save stores resp under key for the configured ttl.
func (s *Store) Save(ctx context.Context, key string, resp *Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode idempotent response: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save idempotent response: %w", err)
	}
	return nil
}

// Acquire marks key as in flight. It reports false if another request holds it.
func (s *Store) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, key+":lock", 1, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}
	return ok, nil
}

// Release clears the in-flight marker for key.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key+":lock").Err(); err != nil {
		return fmt.Errorf("failed to release idempotency lock: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

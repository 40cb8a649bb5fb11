package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyKeyPrefix namespaces delivery keys in Redis
const DefaultIdempotencyKeyPrefix = "editdesk:delivered:"

// Values a delivery key holds
const (
	claimedValue   = "claimed"
	completedValue = "done"
)

// RedisIdempotencyStore implements IdempotencyStore using Redis so every
// instance sees the same delivery keys
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store on a shared Redis client
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultIdempotencyKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed claims a key with a TTL using SETNX.
// Returns true if the key was newly set, false if it already existed.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+key, claimedValue, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	return result, nil
}

// Complete overwrites the claim with the completed marker and a fresh TTL
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, completedValue, ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark delivery as processed: %w", err)
	}
	return nil
}

// IsProcessed checks if a key holds the completed marker
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	value, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check delivery: %w", err)
	}
	return value == completedValue, nil
}

// Unmark deletes a key
func (s *RedisIdempotencyStore) Unmark(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release delivery key: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

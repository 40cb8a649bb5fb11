package shared

import (
	"context"
	"errors"
	"time"
)

// ErrDeliveryInFlight is returned for a delivery whose key another delivery
// holds but has not completed yet. The caller should retry later rather than
// count the event as delivered.
var ErrDeliveryInFlight = errors.New("delivery in flight")

// IdempotencyStore remembers which delivery keys a consumer already handled.
// Keys are usually "<handler>:<orderId>:<sequence>". A key is first claimed,
// then completed once the consumer succeeded.
type IdempotencyStore interface {
	// MarkProcessed claims the key for ttl. It returns false if the key is
	// already claimed or completed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete records that the delivery under key succeeded and keeps the
	// key for ttl
	Complete(ctx context.Context, key string, ttl time.Duration) error

	// IsProcessed reports whether a delivery under key completed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Unmark forgets a key so a failed delivery can be retried
	Unmark(ctx context.Context, key string) error

	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL must outlive the longest outbox retry window
	TTL time.Duration

	// ClaimTTL bounds a claim whose holder never completes it, after a crash
	// mid-delivery for instance. It must outlive the slowest consumer run.
	ClaimTTL time.Duration

	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:      24 * time.Hour,
		ClaimTTL: 5 * time.Minute,
		Enabled:  true,
	}
}

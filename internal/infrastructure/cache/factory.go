package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Coordination bundles the cross-request primitives: the order lock and the
// consumer idempotency store. Client is nil when running in-process.
type Coordination struct {
	Locker      shared.Locker
	Idempotency shared.IdempotencyStore
	Client      redis.UniversalClient
}

// Distributed reports whether locks and delivery keys are shared across
// instances
func (c *Coordination) Distributed() bool {
	return c.Client != nil
}

// Close releases the idempotency store and the Redis client
func (c *Coordination) Close() error {
	if c.Idempotency != nil {
		_ = c.Idempotency.Close()
	}
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// CoordinationFactory creates coordination primitives based on configuration
type CoordinationFactory struct {
	redisConfig           config.RedisConfig
	lockTTL               time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// CoordinationFactoryOption is a functional option for configuring the factory
type CoordinationFactoryOption func(*CoordinationFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CoordinationFactoryOption {
	return func(f *CoordinationFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-process
// primitives when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) CoordinationFactoryOption {
	return func(f *CoordinationFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithRedisLockTTL sets the TTL of Redis order locks
func WithRedisLockTTL(ttl time.Duration) CoordinationFactoryOption {
	return func(f *CoordinationFactory) {
		f.lockTTL = ttl
	}
}

// NewCoordinationFactory creates a new factory
func NewCoordinationFactory(cfg config.RedisConfig, opts ...CoordinationFactoryOption) *CoordinationFactory {
	f := &CoordinationFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           3 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisClient connects to Redis and verifies the connection
func (f *CoordinationFactory) CreateRedisClient(ctx context.Context) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", f.redisConfig.Addr(), err)
	}
	return client, nil
}

// CreateInMemory creates in-process primitives. They are only correct for a
// single instance: a second instance would neither see the order locks nor
// the delivery keys.
func (f *CoordinationFactory) CreateInMemory() *Coordination {
	return &Coordination{
		Locker:      NewKeyedLocker(),
		Idempotency: NewInMemoryIdempotencyStore(),
	}
}

// Create returns Redis-backed primitives when Redis is enabled and reachable,
// otherwise in-process ones if fallback is allowed
func (f *CoordinationFactory) Create(ctx context.Context) (*Coordination, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-process order locks and idempotency store")
		return f.CreateInMemory(), nil
	}

	client, err := f.CreateRedisClient(ctx)
	if err == nil {
		f.logger.Info("using Redis order locks and idempotency store",
			zap.String("addr", f.redisConfig.Addr()),
		)
		return f.fromClient(client), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for order coordination but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process order locks. "+
		"Concurrent transitions on other instances will not be serialized.",
		zap.Error(err),
	)
	return f.CreateInMemory(), nil
}

func (f *CoordinationFactory) fromClient(client redis.UniversalClient) *Coordination {
	prefix := f.redisConfig.KeyPrefix
	return &Coordination{
		Locker:      NewRedisLocker(client, WithLockKeyPrefix(prefix+"lock:"), WithLockTTL(f.lockTTL)),
		Idempotency: NewRedisIdempotencyStore(client, prefix+"delivered:"),
		Client:      client,
	}
}

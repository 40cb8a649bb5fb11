package pubsub

import (
	"errors"
	"fmt"

	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New creates the publisher selected by cfg.Driver. The redis driver needs
// redisClient.
func New(cfg config.PubSubConfig, redisClient redis.UniversalClient, logger *zap.Logger) (activity.Publisher, error) {
	switch cfg.Driver {
	case "mqtt":
		return NewMQTTPublisher(cfg, logger)
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis pubsub driver needs a redis client")
		}
		return NewRedisPublisher(redisClient), nil
	case "log", "":
		return NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unknown pubsub driver %q", cfg.Driver)
	}
}

package pubsub

import (
	"context"
	"fmt"

	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes on Redis channels named after the topic
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher creates a RedisPublisher on a shared client. Close does
// not close the client.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends payload on the topic channel
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", topic, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return nil
}

var _ activity.Publisher = (*RedisPublisher)(nil)

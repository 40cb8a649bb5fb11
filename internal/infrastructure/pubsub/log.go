package pubsub

import (
	"context"

	"github.com/editdesk/backend/internal/domain/activity"
	"go.uber.org/zap"
)

// LogPublisher writes realtime messages to the log instead of a transport
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.logger.Debug("Realtime message",
		zap.String("topic", topic),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

var _ activity.Publisher = (*LogPublisher)(nil)

package event

import (
	"context"
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events to the outbox inside the caller's
// transaction
type OutboxPublisher struct {
	serializer  *EventSerializer
	maxRetries  int
	baseBackoff time.Duration
}

// OutboxPublisherOption configures an OutboxPublisher
type OutboxPublisherOption func(*OutboxPublisher)

// WithRetryPolicy sets the attempts and base backoff stored on new entries
func WithRetryPolicy(maxRetries int, baseBackoff time.Duration) OutboxPublisherOption {
	return func(p *OutboxPublisher) {
		if maxRetries > 0 {
			p.maxRetries = maxRetries
		}
		if baseBackoff > 0 {
			p.baseBackoff = baseBackoff
		}
	}
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(serializer *EventSerializer, opts ...OutboxPublisherOption) *OutboxPublisher {
	p := &OutboxPublisher{
		serializer:  serializer,
		maxRetries:  shared.DefaultMaxRetries,
		baseBackoff: shared.DefaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Entries converts events into outbox entries carrying the retry policy
func (p *OutboxPublisher) Entries(events ...shared.DomainEvent) ([]*shared.OutboxEntry, error) {
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		entry, err := p.serializer.NewEntry(event)
		if err != nil {
			return nil, err
		}
		entry.MaxRetries = p.maxRetries
		entry.BaseBackoff = p.baseBackoff
		entries = append(entries, entry)
	}
	return entries, nil
}

// PublishWithTx writes events to the outbox within the provided transaction
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries, err := p.Entries(events...)
	if err != nil {
		return err
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

// SaveEvents implements shared.OutboxEventSaver
func (p *OutboxPublisher) SaveEvents(ctx context.Context, txProvider any, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("txProvider must be a *gorm.DB, got %T", txProvider)
	}

	return p.PublishWithTx(ctx, tx, events...)
}

// Ensure OutboxPublisher implements OutboxEventSaver
var _ shared.OutboxEventSaver = (*OutboxPublisher)(nil)

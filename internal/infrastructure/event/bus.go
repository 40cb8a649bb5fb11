package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/editdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish once the bus has been stopped
var ErrBusStopped = errors.New("event bus stopped")

// InMemoryEventBus dispatches committed order events to in-process consumers.
// It is the fast path events take right after their transaction commits; the
// outbox processor publishes the same events again through it until every
// consumer succeeded.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	mu       sync.RWMutex
	stopped  bool
	inflight sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Publish hands the events to their consumers synchronously and in the given
// order. A failing consumer does not keep the others from running; every
// failure is returned joined.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return ErrBusStopped
	}
	b.inflight.Add(1)
	b.mu.RUnlock()
	defer b.inflight.Done()

	var errs []error
	for _, event := range events {
		for _, handler := range b.registry.Handlers(event.EventType()) {
			err := b.deliver(ctx, handler, event)
			if err == nil {
				continue
			}
			consumer := HandlerName(handler)
			b.logger.Error("consumer failed",
				zap.String("consumer", consumer),
				zap.String("event_type", event.EventType()),
				zap.String("dedup_key", shared.DedupKey(event)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s on %s: %w", consumer, event.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe routes eventTypes to handler. With no event types the handler's own
// EventTypes are used, and an empty list there makes it a catch-all consumer.
// Subscribing the same consumer to a type twice has no effect.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	bound := b.registry.Register(handler, eventTypes...)
	if len(bound) == 0 {
		b.logger.Warn("consumer already subscribed", zap.String("consumer", HandlerName(handler)))
		return
	}
	b.logger.Debug("consumer subscribed",
		zap.String("consumer", HandlerName(handler)),
		zap.Strings("event_types", bound),
	)
}

// Routes returns the consumer names per event type
func (b *InMemoryEventBus) Routes() map[string][]string {
	return b.registry.Table()
}

// Start logs the routing table
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = false
	b.mu.Unlock()
	b.logger.Info("event bus started",
		zap.Strings("event_types", b.registry.EventTypes()),
		zap.Any("routes", b.registry.Table()),
	)
	return nil
}

// Stop rejects new publishes and waits for in-flight ones, or for ctx
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver runs one consumer, turning a panic into an error so the outbox
// retries the event
func (b *InMemoryEventBus) deliver(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("consumer panicked",
				zap.String("consumer", HandlerName(handler)),
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("consumer panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

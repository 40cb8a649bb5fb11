package event

import (
	"context"
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DeliveryOutcome classifies one delivery of an event to a consumer
type DeliveryOutcome string

const (
	DeliveryHandled   DeliveryOutcome = "handled"
	DeliveryDuplicate DeliveryOutcome = "duplicate"
	DeliveryInFlight  DeliveryOutcome = "in_flight"
	DeliveryFailed    DeliveryOutcome = "failed"
)

// DeliveryObserver is told the outcome of every guarded delivery
type DeliveryObserver interface {
	ConsumerDelivery(ctx context.Context, consumer, eventType string, outcome DeliveryOutcome)
}

// IdempotentHandler guards a consumer so it runs once per (orderId, sequence)
// although the fast path and the outbox may both deliver the event. A failed
// run releases its claim so the outbox redelivery is not skipped. A delivery
// that finds the claim still held by a running delivery fails with
// shared.ErrDeliveryInFlight, so the outbox keeps the entry until the holder
// has either completed or released it.
type IdempotentHandler struct {
	inner    shared.EventHandler
	consumer string
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	observer DeliveryObserver
	logger   *zap.Logger
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the claim TTLs and whether the guard is on
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithDeliveryObserver reports delivery outcomes to o
func WithDeliveryObserver(o DeliveryObserver) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.observer = o
	}
}

// WithHandlerName overrides the consumer name claims are keyed under
func WithHandlerName(name string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.consumer = name
	}
}

// NewIdempotentHandler wraps inner with a claim in store
func NewIdempotentHandler(inner shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		inner:    inner,
		consumer: HandlerName(inner),
		store:    store,
		config:   shared.DefaultIdempotencyConfig(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name is the consumer name of the wrapped handler
func (h *IdempotentHandler) Name() string { return h.consumer }

func (h *IdempotentHandler) EventTypes() []string { return h.inner.EventTypes() }

// Inner returns the wrapped consumer
func (h *IdempotentHandler) Inner() shared.EventHandler { return h.inner }

// DeliveryKey is the claim key of event for this consumer
func (h *IdempotentHandler) DeliveryKey(event shared.DomainEvent) string {
	return h.consumer + ":" + shared.DedupKey(event)
}

// Handle runs the consumer unless an earlier delivery of the same event
// already claimed it
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.inner.Handle(ctx, event)
	}

	key := h.DeliveryKey(event)
	claimed, err := h.store.MarkProcessed(ctx, key, h.claimTTL())
	switch {
	case err != nil:
		// run anyway; consumers tolerate a duplicate better than a gap
		h.logger.Warn("delivery claim unavailable",
			zap.String("consumer", h.consumer),
			zap.String("key", key),
			zap.Error(err),
		)
	case !claimed:
		return h.skip(ctx, event, key)
	}

	if err := h.inner.Handle(ctx, event); err != nil {
		if releaseErr := h.store.Unmark(ctx, key); releaseErr != nil {
			h.logger.Warn("delivery claim not released",
				zap.String("consumer", h.consumer),
				zap.String("key", key),
				zap.Error(releaseErr),
			)
		}
		h.observe(ctx, event, DeliveryFailed)
		return err
	}
	if err := h.store.Complete(ctx, key, h.config.TTL); err != nil {
		// the claim expires after ClaimTTL and a redelivery runs again
		h.logger.Warn("delivery not recorded as completed",
			zap.String("consumer", h.consumer),
			zap.String("key", key),
			zap.Error(err),
		)
	}
	h.observe(ctx, event, DeliveryHandled)
	return nil
}

// skip handles a delivery whose key is already taken. Only a completed
// delivery counts as a duplicate; a claim that is still held may yet be
// released by a failing run.
func (h *IdempotentHandler) skip(ctx context.Context, event shared.DomainEvent, key string) error {
	done, err := h.store.IsProcessed(ctx, key)
	if err == nil && done {
		h.logger.Debug("duplicate delivery skipped",
			zap.String("consumer", h.consumer),
			zap.String("key", key),
		)
		h.observe(ctx, event, DeliveryDuplicate)
		return nil
	}
	if err != nil {
		h.logger.Warn("delivery state unavailable",
			zap.String("consumer", h.consumer),
			zap.String("key", key),
			zap.Error(err),
		)
	}
	h.observe(ctx, event, DeliveryInFlight)
	return fmt.Errorf("%s: %w", key, shared.ErrDeliveryInFlight)
}

func (h *IdempotentHandler) claimTTL() time.Duration {
	if h.config.ClaimTTL > 0 {
		return h.config.ClaimTTL
	}
	return h.config.TTL
}

func (h *IdempotentHandler) observe(ctx context.Context, event shared.DomainEvent, outcome DeliveryOutcome) {
	if h.observer != nil {
		h.observer.ConsumerDelivery(ctx, h.consumer, event.EventType(), outcome)
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)

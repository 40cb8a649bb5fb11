package shared

import "context"

// EventHandler consumes committed domain events. Handlers must tolerate a
// redelivery of an event they already handled; returning an error makes the
// outbox deliver it again later.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the consumed event types, none meaning all of them
	EventTypes() []string
}

// EventPublisher hands committed events to their consumers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is an EventPublisher that consumers can subscribe to
type EventBus interface {
	EventPublisher
	// Subscribe binds handler to eventTypes, or to handler.EventTypes() when
	// none are given
	Subscribe(handler EventHandler, eventTypes ...string)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboxEventSaver writes events to the outbox inside the caller's
// transaction, so an event exists if and only if its change committed.
// tx is the transaction handle of the persistence layer (a *gorm.DB).
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, tx any, events ...DomainEvent) error
}

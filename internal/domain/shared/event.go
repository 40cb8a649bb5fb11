package shared

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	PartnerID() uuid.UUID
}

// OrderScopedEvent is implemented by every event that belongs to an order's
// history. The sequence is assigned once per order and never reused, so
// (OrderID, Sequence) identifies the event for deduplication and ordering.
type OrderScopedEvent interface {
	DomainEvent
	OrderID() uuid.UUID
	Sequence() int64
	SetSequence(seq int64)
	ActorID() uuid.UUID
	ActorRole() string
}

// BaseDomainEvent carries the envelope every event shares. Events embed it
// by value and are published as pointers.
type BaseDomainEvent struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	AggID          uuid.UUID `json:"aggregate_id"`
	AggType        string    `json:"aggregate_type"`
	PartnerIDValue uuid.UUID `json:"partner_id"`
	OrderIDValue   uuid.UUID `json:"order_id"`
	Seq            int64     `json:"sequence"`
	Actor          uuid.UUID `json:"actor_id"`
	Role           string    `json:"actor_role"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggID }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggType }
func (e *BaseDomainEvent) PartnerID() uuid.UUID   { return e.PartnerIDValue }
func (e *BaseDomainEvent) OrderID() uuid.UUID     { return e.OrderIDValue }
func (e *BaseDomainEvent) ActorID() uuid.UUID     { return e.Actor }
func (e *BaseDomainEvent) ActorRole() string      { return e.Role }

// Sequence is the per-order sequence number, 0 until the commit stamps it
func (e *BaseDomainEvent) Sequence() int64 { return e.Seq }

func (e *BaseDomainEvent) SetSequence(seq int64) { e.Seq = seq }

// NewBaseDomainEvent stamps a fresh id and the current time
func NewBaseDomainEvent(eventType, aggType string, aggID, partnerID, orderID uuid.UUID, actor Actor) BaseDomainEvent {
	return BaseDomainEvent{
		ID:             uuid.New(),
		Type:           eventType,
		Timestamp:      time.Now(),
		AggID:          aggID,
		AggType:        aggType,
		PartnerIDValue: partnerID,
		OrderIDValue:   orderID,
		Actor:          actor.ID,
		Role:           string(actor.Role),
	}
}

// DedupKey returns the at-least-once delivery key of an order-scoped event.
// Events outside an order fall back to their event id.
func DedupKey(event DomainEvent) string {
	if scoped, ok := event.(OrderScopedEvent); ok && scoped.Sequence() > 0 {
		return fmt.Sprintf("%s:%d", scoped.OrderID(), scoped.Sequence())
	}
	return event.EventID().String()
}

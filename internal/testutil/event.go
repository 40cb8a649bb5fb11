package testutil

import (
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TestEvent is an order event no consumer knows about
type TestEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

// NewSequencedTestEvent returns a TestEvent of orderID stamped with seq
func NewSequencedTestEvent(eventType string, orderID uuid.UUID, seq int64) *TestEvent {
	evt := &TestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Order", orderID, TestPartnerID(), orderID, shared.SystemActor),
	}
	evt.SetSequence(seq)
	return evt
}

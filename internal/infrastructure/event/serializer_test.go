package event

import (
	"testing"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_RegisteredTypesSorted(t *testing.T) {
	serializer := NewEventSerializer()
	Register[testEvent](serializer, "b.event")
	Register[testEvent](serializer, "a.event")

	assert.Equal(t, []string{"a.event", "b.event"}, serializer.RegisteredTypes())
	assert.True(t, serializer.IsRegistered("a.event"))
	assert.False(t, serializer.IsRegistered("c.event"))
}

func TestEventSerializer_RoundTripKeepsSequenceAndActor(t *testing.T) {
	serializer := NewEventSerializer()
	Register[testEvent](serializer, "OrderAccepted")

	orderID := uuid.New()
	original := newSequencedEvent("OrderAccepted", orderID, 12)
	original.Actor = uuid.New()
	original.Role = string(shared.ActorRoleEditor)

	data, err := serializer.Serialize(original)
	require.NoError(t, err)

	decoded, err := serializer.Deserialize("OrderAccepted", data)
	require.NoError(t, err)

	got, ok := decoded.(*testEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), got.EventID())
	assert.Equal(t, orderID, got.OrderID())
	assert.Equal(t, int64(12), got.Sequence())
	assert.Equal(t, original.Actor, got.ActorID())
	assert.Equal(t, "editor", got.ActorRole())
	assert.Equal(t, shared.DedupKey(original), shared.DedupKey(got))
}

func TestEventSerializer_UnregisteredRefused(t *testing.T) {
	serializer := NewEventSerializer()

	_, err := serializer.Serialize(newTestEvent("Unknown", uuid.New()))
	require.Error(t, err)

	_, err = serializer.Deserialize("Unknown", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestEventSerializer_InvalidPayload(t *testing.T) {
	serializer := NewEventSerializer()
	Register[testEvent](serializer, "OrderAccepted")

	_, err := serializer.Deserialize("OrderAccepted", []byte(`{not json`))
	require.Error(t, err)
}

func TestEventSerializer_NewEntryRequiresSequence(t *testing.T) {
	serializer := NewEventSerializer()
	Register[testEvent](serializer, "OrderAccepted")

	_, err := serializer.NewEntry(newTestEvent("OrderAccepted", uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sequence")

	orderID := uuid.New()
	entry, err := serializer.NewEntry(newSequencedEvent("OrderAccepted", orderID, 5))
	require.NoError(t, err)
	assert.Equal(t, orderID, entry.OrderID)
	assert.Equal(t, int64(5), entry.Sequence)
	assert.Equal(t, shared.OutboxStatusPending, entry.Status)
	assert.NotEmpty(t, entry.Payload)
}

func TestRegisterAllEvents_CoversEveryOrderEvent(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	for _, eventType := range OrderEventTypes() {
		assert.True(t, serializer.IsRegistered(eventType), eventType)
	}
	assert.Len(t, serializer.RegisteredTypes(), len(OrderEventTypes()))
}

func TestRegisterAllEvents_DecodesDomainEvents(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterAllEvents(serializer)

	orderID := uuid.New()
	evt := &fulfillment.OrderApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(fulfillment.EventTypeOrderApproved, fulfillment.AggregateTypeOrder,
			orderID, uuid.New(), orderID, shared.SystemActor),
	}
	evt.SetSequence(8)

	data, err := serializer.Serialize(evt)
	require.NoError(t, err)
	decoded, err := serializer.Deserialize(fulfillment.EventTypeOrderApproved, data)
	require.NoError(t, err)
	assert.IsType(t, &fulfillment.OrderApprovedEvent{}, decoded)
	assert.Equal(t, int64(8), decoded.(shared.OrderScopedEvent).Sequence())

	_, err = serializer.Deserialize(billing.EventTypeInvoiceRaised, []byte(`{"sequence":3}`))
	require.NoError(t, err)
}

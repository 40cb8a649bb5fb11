package event

import (
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
)

// RegisterAllEvents registers every order and ledger event with the
// serializer. The outbox processor cannot replay a type missing here.
func RegisterAllEvents(serializer *EventSerializer) {
	// Order lifecycle
	Register[fulfillment.OrderCreatedEvent](serializer, fulfillment.EventTypeOrderCreated)
	Register[fulfillment.OrderAcceptedEvent](serializer, fulfillment.EventTypeOrderAccepted)
	Register[fulfillment.OrderDeclinedEvent](serializer, fulfillment.EventTypeOrderDeclined)
	Register[fulfillment.DeliverableUploadedEvent](serializer, fulfillment.EventTypeDeliverableUploaded)
	Register[fulfillment.OrderSubmittedForReviewEvent](serializer, fulfillment.EventTypeOrderSubmittedForReview)
	Register[fulfillment.RevisionRequestedEvent](serializer, fulfillment.EventTypeRevisionRequested)
	Register[fulfillment.OrderApprovedEvent](serializer, fulfillment.EventTypeOrderApproved)
	Register[fulfillment.DeliverableVisibilityChangedEvent](serializer, fulfillment.EventTypeDeliverableVisibilityChanged)

	// Ledger
	Register[billing.LineItemAddedEvent](serializer, billing.EventTypeLineItemAdded)
	Register[billing.LineItemChangedEvent](serializer, billing.EventTypeLineItemChanged)
	Register[billing.LineItemRemovedEvent](serializer, billing.EventTypeLineItemRemoved)
	Register[billing.InvoiceRaisedEvent](serializer, billing.EventTypeInvoiceRaised)
	Register[billing.InvoiceRaiseFailedEvent](serializer, billing.EventTypeInvoiceRaiseFailed)
	Register[billing.InvoiceStatusChangedEvent](serializer, billing.EventTypeInvoiceStatusChanged)
}

// OrderEventTypes lists every event that extends an order's history
func OrderEventTypes() []string {
	return []string{
		fulfillment.EventTypeOrderCreated,
		fulfillment.EventTypeOrderAccepted,
		fulfillment.EventTypeOrderDeclined,
		fulfillment.EventTypeDeliverableUploaded,
		fulfillment.EventTypeOrderSubmittedForReview,
		fulfillment.EventTypeRevisionRequested,
		fulfillment.EventTypeOrderApproved,
		fulfillment.EventTypeDeliverableVisibilityChanged,
		billing.EventTypeLineItemAdded,
		billing.EventTypeLineItemChanged,
		billing.EventTypeLineItemRemoved,
		billing.EventTypeInvoiceRaised,
		billing.EventTypeInvoiceRaiseFailed,
		billing.EventTypeInvoiceStatusChanged,
	}
}

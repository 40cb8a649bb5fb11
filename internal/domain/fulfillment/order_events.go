package fulfillment

import (
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated                 = "OrderCreated"
	EventTypeOrderAccepted                = "OrderAccepted"
	EventTypeOrderDeclined                = "OrderDeclined"
	EventTypeDeliverableUploaded          = "DeliverableUploaded"
	EventTypeOrderSubmittedForReview      = "OrderSubmittedForReview"
	EventTypeRevisionRequested            = "RevisionRequested"
	EventTypeOrderApproved                = "OrderApproved"
	EventTypeDeliverableVisibilityChanged = "DeliverableVisibilityChanged"
)

func newOrderEvent(eventType string, o *Order, actor shared.Actor) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, o.ID, o.PartnerID, o.ID, actor)
}

// OrderParties is carried by every order event so consumers can compute the
// notification audience without reloading the order.
type OrderParties struct {
	CustomerID uuid.UUID  `json:"customer_id"`
	EditorID   *uuid.UUID `json:"editor_id,omitempty"`
	Title      string     `json:"title"`
}

func partiesOf(o *Order) OrderParties {
	var editor *uuid.UUID
	if o.EditorID != nil {
		id := *o.EditorID
		editor = &id
	}
	return OrderParties{CustomerID: o.CustomerID, EditorID: editor, Title: o.Title}
}

// OrderCreatedEvent is raised when a job is placed
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderParties
	JobID   uuid.UUID  `json:"job_id"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order, actor shared.Actor) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: newOrderEvent(EventTypeOrderCreated, o, actor),
		OrderParties:    partiesOf(o),
		JobID:           o.JobID,
		DueDate:         o.DueDate,
	}
}

// OrderAcceptedEvent is raised when an editor accepts the order
type OrderAcceptedEvent struct {
	shared.BaseDomainEvent
	OrderParties
}

// NewOrderAcceptedEvent creates a new OrderAcceptedEvent
func NewOrderAcceptedEvent(o *Order, actor shared.Actor) *OrderAcceptedEvent {
	return &OrderAcceptedEvent{
		BaseDomainEvent: newOrderEvent(EventTypeOrderAccepted, o, actor),
		OrderParties:    partiesOf(o),
	}
}

// OrderDeclinedEvent is raised when the order is cancelled by a decline
type OrderDeclinedEvent struct {
	shared.BaseDomainEvent
	OrderParties
	FromStatus     Status     `json:"from_status"`
	PreviousEditor *uuid.UUID `json:"previous_editor_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// NewOrderDeclinedEvent creates a new OrderDeclinedEvent
func NewOrderDeclinedEvent(o *Order, from Status, previousEditor *uuid.UUID, actor shared.Actor) *OrderDeclinedEvent {
	evt := &OrderDeclinedEvent{
		BaseDomainEvent: newOrderEvent(EventTypeOrderDeclined, o, actor),
		OrderParties:    partiesOf(o),
		FromStatus:      from,
		PreviousEditor:  previousEditor,
	}
	if o.DeclineReason != nil {
		evt.Reason = *o.DeclineReason
	}
	return evt
}

// DeliverableUploadedEvent is raised once per delivered file
type DeliverableUploadedEvent struct {
	shared.BaseDomainEvent
	OrderParties
	DeliverableID uuid.UUID `json:"deliverable_id"`
	FileName      string    `json:"file_name"`
	Path          string    `json:"path"`
	Size          int64     `json:"size"`
	Round         int       `json:"round"`
}

// NewDeliverableUploadedEvent creates a new DeliverableUploadedEvent
func NewDeliverableUploadedEvent(o *Order, d *Deliverable, actor shared.Actor) *DeliverableUploadedEvent {
	return &DeliverableUploadedEvent{
		BaseDomainEvent: newOrderEvent(EventTypeDeliverableUploaded, o, actor),
		OrderParties:    partiesOf(o),
		DeliverableID:   d.ID,
		FileName:        d.FileName,
		Path:            d.Path,
		Size:            d.Size,
		Round:           d.Round,
	}
}

// OrderSubmittedForReviewEvent is raised when work enters quality control
type OrderSubmittedForReviewEvent struct {
	shared.BaseDomainEvent
	OrderParties
	Round int `json:"round"`
}

// NewOrderSubmittedForReviewEvent creates a new OrderSubmittedForReviewEvent
func NewOrderSubmittedForReviewEvent(o *Order, actor shared.Actor) *OrderSubmittedForReviewEvent {
	return &OrderSubmittedForReviewEvent{
		BaseDomainEvent: newOrderEvent(EventTypeOrderSubmittedForReview, o, actor),
		OrderParties:    partiesOf(o),
		Round:           o.RevisionCount,
	}
}

// RevisionRequestedEvent is raised when QC or the customer asks for changes
type RevisionRequestedEvent struct {
	shared.BaseDomainEvent
	OrderParties
	Notes         string `json:"notes"`
	RevisionCount int    `json:"revision_count"`
	Limit         string `json:"limit"`
}

// NewRevisionRequestedEvent creates a new RevisionRequestedEvent
func NewRevisionRequestedEvent(o *Order, limit string, actor shared.Actor) *RevisionRequestedEvent {
	evt := &RevisionRequestedEvent{
		BaseDomainEvent: newOrderEvent(EventTypeRevisionRequested, o, actor),
		OrderParties:    partiesOf(o),
		RevisionCount:   o.RevisionCount,
		Limit:           limit,
	}
	if o.RevisionNotes != nil {
		evt.Notes = *o.RevisionNotes
	}
	return evt
}

// OrderApprovedEvent is raised when the delivered work is approved. It drives
// the invoice-on-delivery trigger.
type OrderApprovedEvent struct {
	shared.BaseDomainEvent
	OrderParties
	RevisionCount int `json:"revision_count"`
}

// NewOrderApprovedEvent creates a new OrderApprovedEvent
func NewOrderApprovedEvent(o *Order, actor shared.Actor) *OrderApprovedEvent {
	return &OrderApprovedEvent{
		BaseDomainEvent: newOrderEvent(EventTypeOrderApproved, o, actor),
		OrderParties:    partiesOf(o),
		RevisionCount:   o.RevisionCount,
	}
}

// DeliverableVisibilityChangedEvent records a visibility-only metadata update
type DeliverableVisibilityChangedEvent struct {
	shared.BaseDomainEvent
	OrderParties
	DeliverableID uuid.UUID `json:"deliverable_id"`
	FileName      string    `json:"file_name"`
	Visible       bool      `json:"visible"`
}

// NewDeliverableVisibilityChangedEvent creates a new DeliverableVisibilityChangedEvent
func NewDeliverableVisibilityChangedEvent(o *Order, d *Deliverable, actor shared.Actor) *DeliverableVisibilityChangedEvent {
	return &DeliverableVisibilityChangedEvent{
		BaseDomainEvent: newOrderEvent(EventTypeDeliverableVisibilityChanged, o, actor),
		OrderParties:    partiesOf(o),
		DeliverableID:   d.ID,
		FileName:        d.FileName,
		Visible:         d.Visible,
	}
}

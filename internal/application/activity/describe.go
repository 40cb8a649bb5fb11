package activity

import (
	"fmt"

	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// entry is how one event reads in the activity log
type entry struct {
	action      string
	category    activity.Category
	title       string
	description string
	metadata    any
	// customerID and editorID feed the audience; unknown parties stay nil
	customerID uuid.UUID
	editorID   *uuid.UUID
}

// HandledEventTypes are the events that produce an activity record
func HandledEventTypes() []string {
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

func orderEntry(p fulfillment.OrderParties, action string, category activity.Category, title, description string, metadata any) entry {
	return entry{
		action:      action,
		category:    category,
		title:       title,
		description: description,
		metadata:    metadata,
		customerID:  p.CustomerID,
		editorID:    p.EditorID,
	}
}

// describe maps an event to its activity entry
func describe(event shared.DomainEvent) (entry, error) {
	switch e := event.(type) {
	case *fulfillment.OrderCreatedEvent:
		return orderEntry(e.OrderParties, activity.ActionOrderCreated, activity.CategoryLifecycle,
			"Order placed", fmt.Sprintf("%q was placed", e.Title),
			map[string]any{"job_id": e.JobID, "due_date": e.DueDate}), nil

	case *fulfillment.OrderAcceptedEvent:
		return orderEntry(e.OrderParties, activity.ActionOrderAccepted, activity.CategoryLifecycle,
			"Order accepted", fmt.Sprintf("%q was accepted by an editor", e.Title),
			map[string]any{"editor_id": e.EditorID}), nil

	case *fulfillment.OrderDeclinedEvent:
		description := fmt.Sprintf("%q was declined", e.Title)
		if e.Reason != "" {
			description += ": " + e.Reason
		}
		return orderEntry(e.OrderParties, activity.ActionOrderDeclined, activity.CategoryLifecycle,
			"Order declined", description,
			map[string]any{"from_status": e.FromStatus, "reason": e.Reason, "previous_editor_id": e.PreviousEditor}), nil

	case *fulfillment.DeliverableUploadedEvent:
		return orderEntry(e.OrderParties, activity.ActionDeliverableUploaded, activity.CategoryDelivery,
			"Deliverable uploaded", fmt.Sprintf("%s was delivered", e.FileName),
			map[string]any{"deliverable_id": e.DeliverableID, "file_name": e.FileName, "size": e.Size, "round": e.Round}), nil

	case *fulfillment.OrderSubmittedForReviewEvent:
		return orderEntry(e.OrderParties, activity.ActionSubmittedForReview, activity.CategoryDelivery,
			"Ready for review", fmt.Sprintf("%q was submitted for quality check", e.Title),
			map[string]any{"round": e.Round}), nil

	case *fulfillment.RevisionRequestedEvent:
		return orderEntry(e.OrderParties, activity.ActionRevisionRequested, activity.CategoryRevision,
			"Revision requested", fmt.Sprintf("Revision %d of %s requested", e.RevisionCount, e.Limit),
			map[string]any{"notes": e.Notes, "revision_count": e.RevisionCount, "limit": e.Limit}), nil

	case *fulfillment.OrderApprovedEvent:
		return orderEntry(e.OrderParties, activity.ActionOrderApproved, activity.CategoryLifecycle,
			"Order approved", fmt.Sprintf("%q was approved", e.Title),
			map[string]any{"revision_count": e.RevisionCount}), nil

	case *fulfillment.DeliverableVisibilityChangedEvent:
		state := "hidden from"
		if e.Visible {
			state = "shown to"
		}
		return orderEntry(e.OrderParties, activity.ActionDeliverableVisibility, activity.CategoryVisibility,
			"Deliverable visibility changed", fmt.Sprintf("%s is now %s the customer", e.FileName, state),
			map[string]any{"deliverable_id": e.DeliverableID, "visible": e.Visible}), nil

	case *billing.LineItemAddedEvent:
		return entry{
			action:      activity.ActionLineItemAdded,
			category:    activity.CategoryBilling,
			title:       "Line item added",
			description: fmt.Sprintf("%d x %s added", e.Item.Quantity, e.Item.Name),
			metadata:    map[string]any{"item": e.Item, "total": e.Total},
		}, nil

	case *billing.LineItemChangedEvent:
		return entry{
			action:      activity.ActionLineItemChanged,
			category:    activity.CategoryBilling,
			title:       "Line item changed",
			description: fmt.Sprintf("%s %s changed", e.Item.Name, e.Field),
			metadata:    map[string]any{"item": e.Item, "field": e.Field, "total": e.Total},
		}, nil

	case *billing.LineItemRemovedEvent:
		return entry{
			action:      activity.ActionLineItemRemoved,
			category:    activity.CategoryBilling,
			title:       "Line item removed",
			description: fmt.Sprintf("%s removed", e.Item.Name),
			metadata:    map[string]any{"item": e.Item, "total": e.Total},
		}, nil

	case *billing.InvoiceRaisedEvent:
		return entry{
			action:      activity.ActionInvoiceRaised,
			category:    activity.CategoryBilling,
			title:       "Invoice raised",
			description: fmt.Sprintf("Invoice %s for %s %s", e.InvoiceNumber, e.Total.StringFixed(2), e.Currency),
			metadata:    map[string]any{"invoice_id": e.InvoiceID, "invoice_number": e.InvoiceNumber, "status": e.Status},
			customerID:  e.CustomerID,
		}, nil

	case *billing.InvoiceRaiseFailedEvent:
		return entry{
			action:      activity.ActionInvoiceRaiseFailed,
			category:    activity.CategoryBilling,
			title:       "Invoice not raised",
			description: e.Reason,
			metadata:    map[string]any{"missing": e.Missing},
		}, nil

	case *billing.InvoiceStatusChangedEvent:
		return entry{
			action:      activity.ActionInvoiceStatusChanged,
			category:    activity.CategoryBilling,
			title:       "Invoice status changed",
			description: fmt.Sprintf("Invoice is now %s", e.To),
			metadata:    map[string]any{"invoice_id": e.InvoiceID, "from": e.From, "to": e.To},
			customerID:  e.CustomerID,
		}, nil
	}
	return entry{}, fmt.Errorf("no activity entry for event type %s", event.EventType())
}

// Package fulfillment contains the order aggregate and its lifecycle state
// machine.
package fulfillment

import (
	"strings"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Deliverable is a file delivered against an order
type Deliverable struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	FileName    string
	Path        string
	URL         string
	Size        int64
	ContentType string
	// Round is the revision round the file was delivered in, 0 for the
	// first delivery
	Round      int
	Visible    bool
	UploadedBy uuid.UUID
	UploadedAt time.Time
}

// Order is the aggregate root of the fulfillment workflow. All state changes go
// through Apply; the repository persists the result with a version check.
type Order struct {
	shared.PartnerAggregateRoot
	JobID         uuid.UUID
	Title         string
	CustomerID    uuid.UUID
	EditorID      *uuid.UUID
	Status        Status
	RevisionCount int
	DueDate       *time.Time
	DeclineReason *string
	RevisionNotes *string
	Deliverables  []Deliverable
	AcceptedAt    *time.Time
	SubmittedAt   *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// NewOrder creates a pending order for a placed job. editorID pre-assigns the
// order to one editor; nil leaves it open to whoever accepts first.
func NewOrder(partnerID, jobID, customerID uuid.UUID, editorID *uuid.UUID, title string, dueDate *time.Time, actor shared.Actor) (*Order, error) {
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "partner id cannot be empty")
	}
	if jobID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "job id cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "customer id cannot be empty")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "title cannot be empty")
	}

	order := &Order{
		PartnerAggregateRoot: shared.NewPartnerAggregateRoot(partnerID),
		JobID:                jobID,
		Title:                title,
		CustomerID:           customerID,
		EditorID:             editorID,
		Status:               StatusPending,
		DueDate:              dueDate,
		Deliverables:         make([]Deliverable, 0),
	}
	order.AddDomainEvent(NewOrderCreatedEvent(order, actor))
	return order, nil
}

// Apply validates and applies one transition request. On error the order is
// left exactly as it was.
func (o *Order) Apply(t Transition, actor shared.Actor) error {
	if t == nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "transition is required")
	}
	if o.Status.IsTerminal() {
		return o.invalidTransition(t.Action())
	}

	switch req := t.(type) {
	case Accept:
		return o.accept(req, actor)
	case Decline:
		return o.decline(req, actor)
	case UploadDeliverable:
		return o.uploadDeliverable(req, actor)
	case MarkComplete:
		return o.markComplete(actor)
	case RequestRevision:
		return o.requestRevision(req, actor)
	case Approve:
		return o.approve(actor)
	default:
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "unsupported transition %T", t)
	}
}

// CanApply reports whether the action is legal from the current status,
// ignoring actor and guard checks
func (o *Order) CanApply(action Action) bool {
	switch action {
	case ActionAccept:
		return o.Status == StatusPending
	case ActionDecline:
		return o.Status == StatusPending || o.Status == StatusProcessing
	case ActionUploadDeliverable:
		return o.Status.AcceptsDeliverables()
	case ActionMarkComplete:
		return o.Status == StatusProcessing || o.Status == StatusInRevision
	case ActionRequestRevision, ActionApprove:
		return o.Status == StatusHumanCheck
	}
	return false
}

// Precheck runs the status and actor guards of an action without changing
// the order. Uploads use it to fail before any file is transferred.
func (o *Order) Precheck(action Action, actor shared.Actor) error {
	if o.Status.IsTerminal() || !o.CanApply(action) {
		return o.invalidTransition(action)
	}
	switch action {
	case ActionDecline, ActionUploadDeliverable, ActionMarkComplete:
		return o.ensureAssignedEditor(actor)
	case ActionRequestRevision, ActionApprove:
		return o.ensureReviewer(actor)
	}
	return nil
}

func (o *Order) accept(req Accept, actor shared.Actor) error {
	if !o.CanApply(ActionAccept) {
		return o.invalidTransition(ActionAccept)
	}
	if req.EditorID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "editor id is required")
	}
	if o.EditorID != nil && *o.EditorID != req.EditorID {
		return shared.ErrForbiddenActor.
			WithDetail("order_id", o.ID.String()).
			WithDetail("editor_id", o.EditorID.String())
	}

	editorID := req.EditorID
	now := time.Now()
	o.EditorID = &editorID
	o.AcceptedAt = &now
	o.moveTo(StatusProcessing)
	o.AddDomainEvent(NewOrderAcceptedEvent(o, actor))
	return nil
}

func (o *Order) decline(req Decline, actor shared.Actor) error {
	if !o.CanApply(ActionDecline) {
		return o.invalidTransition(ActionDecline)
	}
	if err := o.ensureAssignedEditor(actor); err != nil {
		return err
	}

	previousEditor := o.EditorID
	previousStatus := o.Status
	reason := strings.TrimSpace(req.Reason)
	now := time.Now()
	if reason != "" {
		o.DeclineReason = &reason
	}
	o.EditorID = nil
	o.CancelledAt = &now
	o.moveTo(StatusCancelled)
	o.AddDomainEvent(NewOrderDeclinedEvent(o, previousStatus, previousEditor, actor))
	return nil
}

func (o *Order) uploadDeliverable(req UploadDeliverable, actor shared.Actor) error {
	if !o.CanApply(ActionUploadDeliverable) {
		return o.invalidTransition(ActionUploadDeliverable)
	}
	if err := o.ensureAssignedEditor(actor); err != nil {
		return err
	}
	if len(req.Files) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "at least one file is required")
	}
	for _, f := range req.Files {
		if strings.TrimSpace(f.FileName) == "" || f.Path == "" {
			return shared.NewDomainError(shared.CodeInvalidInput, "file name and path are required")
		}
	}

	now := time.Now()
	for _, f := range req.Files {
		d := Deliverable{
			ID:          uuid.New(),
			OrderID:     o.ID,
			FileName:    f.FileName,
			Path:        f.Path,
			URL:         f.URL,
			Size:        f.Size,
			ContentType: f.ContentType,
			Round:       o.RevisionCount,
			Visible:     true,
			UploadedBy:  actor.ID,
			UploadedAt:  now,
		}
		o.Deliverables = append(o.Deliverables, d)
		o.AddDomainEvent(NewDeliverableUploadedEvent(o, &d, actor))
	}
	o.UpdatedAt = now
	return nil
}

func (o *Order) markComplete(actor shared.Actor) error {
	if !o.CanApply(ActionMarkComplete) {
		return o.invalidTransition(ActionMarkComplete)
	}
	if err := o.ensureAssignedEditor(actor); err != nil {
		return err
	}
	now := time.Now()
	o.SubmittedAt = &now
	o.moveTo(StatusHumanCheck)
	o.AddDomainEvent(NewOrderSubmittedForReviewEvent(o, actor))
	return nil
}

func (o *Order) requestRevision(req RequestRevision, actor shared.Actor) error {
	if !o.CanApply(ActionRequestRevision) {
		return o.invalidTransition(ActionRequestRevision)
	}
	if err := o.ensureReviewer(actor); err != nil {
		return err
	}
	if !req.Decision.Allowed {
		return shared.ErrRevisionLimitExceeded.
			WithDetail("order_id", o.ID.String()).
			WithDetail("customer_id", o.CustomerID.String()).
			WithDetail("revision_count", o.RevisionCount).
			WithDetail("limit", req.Decision.Limit.String())
	}

	notes := strings.TrimSpace(req.Notes)
	o.RevisionCount++
	o.RevisionNotes = &notes
	o.moveTo(StatusInRevision)
	o.AddDomainEvent(NewRevisionRequestedEvent(o, req.Decision.Limit.String(), actor))
	return nil
}

func (o *Order) approve(actor shared.Actor) error {
	if !o.CanApply(ActionApprove) {
		return o.invalidTransition(ActionApprove)
	}
	if err := o.ensureReviewer(actor); err != nil {
		return err
	}
	now := time.Now()
	o.CompletedAt = &now
	o.moveTo(StatusCompleted)
	o.AddDomainEvent(NewOrderApprovedEvent(o, actor))
	return nil
}

// SetDeliverableVisibility toggles whether a delivered file is shown to the
// customer. It is metadata only and legal in every status.
func (o *Order) SetDeliverableVisibility(deliverableID uuid.UUID, visible bool, actor shared.Actor) error {
	for i := range o.Deliverables {
		d := &o.Deliverables[i]
		if d.ID != deliverableID {
			continue
		}
		if d.Visible == visible {
			return nil
		}
		d.Visible = visible
		o.UpdatedAt = time.Now()
		o.AddDomainEvent(NewDeliverableVisibilityChangedEvent(o, d, actor))
		return nil
	}
	return shared.ErrNotFound.WithDetail("deliverable_id", deliverableID.String())
}

// VisibleDeliverables returns the files the customer may see
func (o *Order) VisibleDeliverables() []Deliverable {
	out := make([]Deliverable, 0, len(o.Deliverables))
	for _, d := range o.Deliverables {
		if d.Visible {
			out = append(out, d)
		}
	}
	return out
}

// Participants returns the editor and customer of the order
func (o *Order) Participants() (editorID *uuid.UUID, customerID uuid.UUID) {
	return o.EditorID, o.CustomerID
}

// ensureAssignedEditor stops an editor from acting on someone else's order.
// Partner admins and the system may act on any order.
func (o *Order) ensureAssignedEditor(actor shared.Actor) error {
	if actor.Role != shared.ActorRoleEditor {
		return nil
	}
	if o.EditorID == nil || *o.EditorID != actor.ID {
		return shared.ErrForbiddenActor.
			WithDetail("order_id", o.ID.String()).
			WithDetail("actor_id", actor.ID.String())
	}
	return nil
}

// ensureReviewer keeps QC decisions away from editors
func (o *Order) ensureReviewer(actor shared.Actor) error {
	if actor.Role == shared.ActorRoleEditor {
		return shared.ErrForbiddenActor.
			WithDetail("order_id", o.ID.String()).
			WithDetail("actor_id", actor.ID.String())
	}
	return nil
}

func (o *Order) moveTo(target Status) {
	o.Status = target
	o.UpdatedAt = time.Now()
}

func (o *Order) invalidTransition(action Action) *shared.DomainError {
	return shared.NewDomainErrorf(shared.CodeInvalidTransition,
		"cannot %s an order in status %s", action, o.Status).
		WithDetail("order_id", o.ID.String()).
		WithDetail("status", string(o.Status)).
		WithDetail("action", string(action))
}

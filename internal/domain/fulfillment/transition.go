package fulfillment

import (
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/google/uuid"
)

// Action names a transition request
type Action string

const (
	ActionAccept            Action = "accept"
	ActionDecline           Action = "decline"
	ActionUploadDeliverable Action = "upload_deliverable"
	ActionMarkComplete      Action = "mark_complete"
	ActionRequestRevision   Action = "request_revision"
	ActionApprove           Action = "approve"
)

// AllActions lists every transition action
var AllActions = []Action{
	ActionAccept,
	ActionDecline,
	ActionUploadDeliverable,
	ActionMarkComplete,
	ActionRequestRevision,
	ActionApprove,
}

// Transition is a request to move an order through its lifecycle. The set of
// implementations is closed; Order.Apply switches over all of them.
type Transition interface {
	Action() Action
	sealed()
}

// Accept assigns the editor and starts work
type Accept struct {
	EditorID uuid.UUID
}

// Decline cancels the order
type Decline struct {
	Reason string
}

// UploadDeliverable attaches files that were already stored in the blob store
type UploadDeliverable struct {
	Files []DeliverableFile
}

// MarkComplete submits the work for quality-control review
type MarkComplete struct{}

// RequestRevision sends the work back to the editor. Decision is the outcome
// of the revision policy check for the order's customer at its current count.
type RequestRevision struct {
	Notes    string
	Decision revision.Decision
}

// Approve accepts the delivered work
type Approve struct{}

func (Accept) Action() Action            { return ActionAccept }
func (Decline) Action() Action           { return ActionDecline }
func (UploadDeliverable) Action() Action { return ActionUploadDeliverable }
func (MarkComplete) Action() Action      { return ActionMarkComplete }
func (RequestRevision) Action() Action   { return ActionRequestRevision }
func (Approve) Action() Action           { return ActionApprove }

func (Accept) sealed()            {}
func (Decline) sealed()           {}
func (UploadDeliverable) sealed() {}
func (MarkComplete) sealed()      {}
func (RequestRevision) sealed()   {}
func (Approve) sealed()           {}

// DeliverableFile describes a stored file to attach to the order
type DeliverableFile struct {
	FileName    string
	Path        string
	URL         string
	Size        int64
	ContentType string
}

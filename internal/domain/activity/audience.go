package activity

import (
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Party is a kind of participant that can be notified
type Party string

const (
	PartyPartnerAdmins Party = "partner_admins"
	PartyEditor        Party = "editor"
	PartyCustomer      Party = "customer"
)

// Recipient is one notification target
type Recipient struct {
	ID   uuid.UUID
	Role shared.ActorRole
}

// Participants are the people attached to an order when an event happened
type Participants struct {
	PartnerAdmins []uuid.UUID
	EditorID      *uuid.UUID
	CustomerID    uuid.UUID
}

// audienceByAction is the notification policy. Actions missing here notify
// nobody.
var audienceByAction = map[string][]Party{
	ActionOrderCreated:          {PartyPartnerAdmins},
	ActionOrderAccepted:         {PartyPartnerAdmins, PartyCustomer},
	ActionOrderDeclined:         {PartyPartnerAdmins, PartyCustomer},
	ActionDeliverableUploaded:   {PartyPartnerAdmins},
	ActionSubmittedForReview:    {PartyPartnerAdmins},
	ActionRevisionRequested:     {PartyEditor, PartyPartnerAdmins},
	ActionOrderApproved:         {PartyEditor, PartyCustomer, PartyPartnerAdmins},
	ActionLineItemAdded:         {PartyPartnerAdmins},
	ActionLineItemChanged:       {PartyPartnerAdmins},
	ActionLineItemRemoved:       {PartyPartnerAdmins},
	ActionInvoiceRaised:         {PartyPartnerAdmins, PartyCustomer},
	ActionInvoiceRaiseFailed:    {PartyPartnerAdmins},
	ActionInvoiceStatusChanged:  {PartyPartnerAdmins},
	ActionDeliverableVisibility: nil,
}

// Action names recorded in the activity log
const (
	ActionOrderCreated          = "order.created"
	ActionOrderAccepted         = "order.accepted"
	ActionOrderDeclined         = "order.declined"
	ActionDeliverableUploaded   = "deliverable.uploaded"
	ActionSubmittedForReview    = "order.submitted_for_review"
	ActionRevisionRequested     = "revision.requested"
	ActionOrderApproved         = "order.approved"
	ActionDeliverableVisibility = "deliverable.visibility_changed"
	ActionLineItemAdded         = "ledger.line_item_added"
	ActionLineItemChanged       = "ledger.line_item_changed"
	ActionLineItemRemoved       = "ledger.line_item_removed"
	ActionInvoiceRaised         = "invoice.raised"
	ActionInvoiceRaiseFailed    = "invoice.raise_failed"
	ActionInvoiceStatusChanged  = "invoice.status_changed"
)

// Audience resolves who is notified of an action. The actor is never
// notified of their own action and each person appears once.
func Audience(action string, p Participants, actorID uuid.UUID) []Recipient {
	parties := audienceByAction[action]
	seen := make(map[uuid.UUID]struct{})
	var out []Recipient

	add := func(id uuid.UUID, role shared.ActorRole) {
		if id == uuid.Nil || id == actorID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, Recipient{ID: id, Role: role})
	}

	for _, party := range parties {
		switch party {
		case PartyPartnerAdmins:
			for _, id := range p.PartnerAdmins {
				add(id, shared.ActorRolePartnerAdmin)
			}
		case PartyEditor:
			if p.EditorID != nil {
				add(*p.EditorID, shared.ActorRoleEditor)
			}
		case PartyCustomer:
			add(p.CustomerID, shared.ActorRoleCustomer)
		}
	}
	return out
}

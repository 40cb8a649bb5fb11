package shared

import "github.com/google/uuid"

// ActorRole identifies which party performed an action
type ActorRole string

const (
	ActorRolePartnerAdmin ActorRole = "partner_admin"
	ActorRoleEditor       ActorRole = "editor"
	ActorRoleCustomer     ActorRole = "customer"
	// ActorRoleSystem covers automated QC and background triggers
	ActorRoleSystem ActorRole = "system"
)

// IsValid reports whether the role is known
func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRolePartnerAdmin, ActorRoleEditor, ActorRoleCustomer, ActorRoleSystem:
		return true
	}
	return false
}

// Actor is the caller of a command. Identity is asserted by the gateway in
// front of the service.
type Actor struct {
	ID   uuid.UUID
	Role ActorRole
}

// SystemActor is used by background triggers
var SystemActor = Actor{ID: uuid.Nil, Role: ActorRoleSystem}

// NewActor creates an actor
func NewActor(id uuid.UUID, role ActorRole) Actor {
	return Actor{ID: id, Role: role}
}

package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is a consistency boundary that records the events of its
// changes until the committer takes them
type AggregateRoot interface {
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// PartnerAggregateRoot carries the identity and concurrency state shared by
// the order and the ledger. Every aggregate belongs to exactly one partner;
// Version is compared and bumped on each save.
type PartnerAggregateRoot struct {
	ID        uuid.UUID
	PartnerID uuid.UUID
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time

	pending []DomainEvent
}

// NewPartnerAggregateRoot starts a fresh aggregate at version 1
func NewPartnerAggregateRoot(partnerID uuid.UUID) PartnerAggregateRoot {
	now := time.Now()
	return PartnerAggregateRoot{
		ID:        uuid.New(),
		PartnerID: partnerID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *PartnerAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the events recorded since the last clear, oldest first
func (a *PartnerAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

func (a *PartnerAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

// IncrementVersion is called by repositories after a successful save
func (a *PartnerAggregateRoot) IncrementVersion() {
	a.Version++
}

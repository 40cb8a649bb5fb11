// Package workflow runs order-scoped commands: it serializes them on the
// order lock, commits aggregate changes and their events in one transaction
// and hands the committed events to the fast dispatch path.
package workflow

import (
	"context"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
)

// TransactionScope provides transactional access to the order and ledger
// repositories. Everything done through the repositories handed to fn is
// committed or rolled back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories are bound to one transaction
type TransactionalRepositories interface {
	OrderRepo() fulfillment.OrderRepository
	LedgerRepo() billing.LedgerRepository
	// SaveEvents writes events to the outbox in the current transaction
	SaveEvents(ctx context.Context, events ...shared.DomainEvent) error
}

// SequencerProvider is implemented by transactional repositories that
// reserve event sequence numbers inside the transaction, so a rolled back
// command leaves no gap
type SequencerProvider interface {
	Sequencer() shared.Sequencer
}

// NoOpTransactionScope runs without a real transaction. It is used with the
// in-memory repositories.
type NoOpTransactionScope struct {
	orderRepo  fulfillment.OrderRepository
	ledgerRepo billing.LedgerRepository
	outbox     shared.OutboxEventSaver
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	orderRepo fulfillment.OrderRepository,
	ledgerRepo billing.LedgerRepository,
	outbox shared.OutboxEventSaver,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		orderRepo:  orderRepo,
		ledgerRepo: ledgerRepo,
		outbox:     outbox,
	}
}

// Execute runs fn directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// OrderRepo returns the order repository
func (s *NoOpTransactionScope) OrderRepo() fulfillment.OrderRepository {
	return s.orderRepo
}

// LedgerRepo returns the ledger repository
func (s *NoOpTransactionScope) LedgerRepo() billing.LedgerRepository {
	return s.ledgerRepo
}

// SaveEvents hands the events to the outbox saver, if any
func (s *NoOpTransactionScope) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if s.outbox == nil || len(events) == 0 {
		return nil
	}
	return s.outbox.SaveEvents(ctx, nil, events...)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)

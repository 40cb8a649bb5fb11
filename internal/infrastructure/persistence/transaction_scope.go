package persistence

import (
	"context"

	"github.com/editdesk/backend/internal/application/workflow"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements workflow.TransactionScope using GORM
// transactions. Aggregate writes, sequence reservations and outbox rows of
// one Execute commit or roll back together.
type GormTransactionScope struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope. outbox is
// handed the transaction's *gorm.DB when events are saved.
func NewGormTransactionScope(db *gorm.DB, outbox shared.OutboxEventSaver) *GormTransactionScope {
	return &GormTransactionScope{db: db, outbox: outbox}
}

// Execute runs fn within a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos workflow.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
	})
}

// gormTransactionalRepositories are bound to one transaction
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

func (r *gormTransactionalRepositories) OrderRepo() fulfillment.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) LedgerRepo() billing.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) Sequencer() shared.Sequencer {
	return NewGormSequencer(r.tx)
}

func (r *gormTransactionalRepositories) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if r.outbox == nil || len(events) == 0 {
		return nil
	}
	return r.outbox.SaveEvents(ctx, r.tx, events...)
}

var (
	_ workflow.TransactionScope          = (*GormTransactionScope)(nil)
	_ workflow.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
	_ workflow.SequencerProvider         = (*gormTransactionalRepositories)(nil)
)

package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MemoryOrders is an in-memory fulfillment.OrderRepository with the same
// version check as the database repository. Loaded orders are copies.
type MemoryOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*fulfillment.Order

	// BeforeSave, when set, runs at the start of every SaveWithLock
	BeforeSave func(order *fulfillment.Order)
}

// NewMemoryOrders creates an empty order store
func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[uuid.UUID]*fulfillment.Order)}
}

// FindByID implements fulfillment.OrderRepository
func (r *MemoryOrders) FindByID(_ context.Context, id uuid.UUID) (*fulfillment.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound.WithDetail("order_id", id.String())
	}
	return cloneOrder(o), nil
}

// FindForPartner implements fulfillment.OrderRepository
func (r *MemoryOrders) FindForPartner(_ context.Context, partnerID uuid.UUID, filter fulfillment.OrderFilter) ([]fulfillment.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []fulfillment.Order
	for _, o := range r.orders {
		if o.PartnerID != partnerID || !matchesFilter(o, filter) {
			continue
		}
		matched = append(matched, *cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(matched) {
			return []fulfillment.Order{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

// Create implements fulfillment.OrderRepository
func (r *MemoryOrders) Create(_ context.Context, order *fulfillment.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return shared.ErrAlreadyExists.WithDetail("order_id", order.ID.String())
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// SaveWithLock implements fulfillment.OrderRepository
func (r *MemoryOrders) SaveWithLock(_ context.Context, order *fulfillment.Order) error {
	if r.BeforeSave != nil {
		r.BeforeSave(order)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return shared.ErrNotFound.WithDetail("order_id", order.ID.String())
	}
	if stored.Version != order.Version {
		return shared.ErrConflictingTransition.WithDetail("order_id", order.ID.String())
	}
	order.IncrementVersion()
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func matchesFilter(o *fulfillment.Order, f fulfillment.OrderFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
		return false
	}
	if f.EditorID != nil && (o.EditorID == nil || *o.EditorID != *f.EditorID) {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

func cloneOrder(o *fulfillment.Order) *fulfillment.Order {
	c := *o
	c.Deliverables = append([]fulfillment.Deliverable(nil), o.Deliverables...)
	c.ClearDomainEvents()
	return &c
}

// MemoryLedgers is an in-memory billing.LedgerRepository
type MemoryLedgers struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID]*billing.Ledger
}

// NewMemoryLedgers creates an empty ledger store
func NewMemoryLedgers() *MemoryLedgers {
	return &MemoryLedgers{ledgers: make(map[uuid.UUID]*billing.Ledger)}
}

// FindByOrderID implements billing.LedgerRepository
func (r *MemoryLedgers) FindByOrderID(_ context.Context, orderID uuid.UUID) (*billing.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[orderID]
	if !ok {
		return nil, shared.ErrNotFound.WithDetail("order_id", orderID.String())
	}
	return cloneLedger(l), nil
}

// FindByOrderIDs implements billing.LedgerRepository
func (r *MemoryLedgers) FindByOrderIDs(_ context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]*billing.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*billing.Ledger, len(orderIDs))
	for _, id := range orderIDs {
		if l, ok := r.ledgers[id]; ok {
			out[id] = cloneLedger(l)
		}
	}
	return out, nil
}

// Create implements billing.LedgerRepository
func (r *MemoryLedgers) Create(_ context.Context, ledger *billing.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ledgers[ledger.OrderID]; ok {
		return shared.ErrAlreadyExists.WithDetail("order_id", ledger.OrderID.String())
	}
	r.ledgers[ledger.OrderID] = cloneLedger(ledger)
	return nil
}

// SaveWithLock implements billing.LedgerRepository
func (r *MemoryLedgers) SaveWithLock(_ context.Context, ledger *billing.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ledgers[ledger.OrderID]
	if !ok {
		return shared.ErrNotFound.WithDetail("order_id", ledger.OrderID.String())
	}
	if stored.Version != ledger.Version {
		return shared.ErrConflictingTransition.WithDetail("order_id", ledger.OrderID.String())
	}
	ledger.IncrementVersion()
	r.ledgers[ledger.OrderID] = cloneLedger(ledger)
	return nil
}

func cloneLedger(l *billing.Ledger) *billing.Ledger {
	c := *l
	c.Items = append([]billing.LineItem(nil), l.Items...)
	c.ClearDomainEvents()
	return &c
}

// MemoryOutbox records the events written to the outbox
type MemoryOutbox struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

// NewMemoryOutbox creates an empty outbox recorder
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// SaveEvents implements shared.OutboxEventSaver
func (o *MemoryOutbox) SaveEvents(_ context.Context, _ any, events ...shared.DomainEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, events...)
	return nil
}

// SetError makes every following SaveEvents fail
func (o *MemoryOutbox) SetError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Events returns the recorded events in write order
func (o *MemoryOutbox) Events() []shared.DomainEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]shared.DomainEvent(nil), o.events...)
}

// EventTypes returns the recorded event types in write order
func (o *MemoryOutbox) EventTypes() []string {
	events := o.Events()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType())
	}
	return out
}

// MemorySequencer hands out per-order sequences from a map
type MemorySequencer struct {
	mu   sync.Mutex
	next map[uuid.UUID]int64
}

// NewMemorySequencer creates a sequencer starting every order at 1
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{next: make(map[uuid.UUID]int64)}
}

// Next implements shared.Sequencer
func (s *MemorySequencer) Next(_ context.Context, orderID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[orderID]++
	return s.next[orderID], nil
}

var (
	_ fulfillment.OrderRepository = (*MemoryOrders)(nil)
	_ billing.LedgerRepository    = (*MemoryLedgers)(nil)
	_ shared.OutboxEventSaver     = (*MemoryOutbox)(nil)
	_ shared.Sequencer            = (*MemorySequencer)(nil)
)

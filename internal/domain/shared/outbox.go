package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

// An entry moves PENDING -> PROCESSING -> SENT, or on a failed delivery to
// FAILED (due again at NextRetryAt) and finally DEAD once its attempts are
// used up. Only an operator moves DEAD back to PENDING.
const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
)

// OutboxEntry is a committed event waiting for at-least-once delivery. Entries
// of one order are delivered in Sequence order.
type OutboxEntry struct {
	ID            uuid.UUID
	PartnerID     uuid.UUID
	OrderID       uuid.UUID
	Sequence      int64
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte

	Status      OutboxStatus
	RetryCount  int
	MaxRetries  int
	BaseBackoff time.Duration
	LastError   string
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOutboxEntry wraps an encoded event. Order-scoped events carry their
// (orderId, sequence) key onto the entry.
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	e := &OutboxEntry{
		ID:            uuid.New(),
		PartnerID:     event.PartnerID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		BaseBackoff:   DefaultBaseBackoff,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if scoped, ok := event.(OrderScopedEvent); ok {
		e.OrderID = scoped.OrderID()
		e.Sequence = scoped.Sequence()
	}
	return e
}

// IsDead reports whether the entry exhausted its attempts
func (e *OutboxEntry) IsDead() bool { return e.Status == OutboxStatusDead }

// MarkSent records a delivery every consumer accepted
func (e *OutboxEntry) MarkSent() {
	now := time.Now()
	e.Status = OutboxStatusSent
	e.NextRetryAt = nil
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed counts a failed attempt. The entry is due again after Backoff,
// or dead once RetryCount reaches MaxRetries.
func (e *OutboxEntry) MarkFailed(cause string) {
	now := time.Now()
	e.RetryCount++
	e.LastError = cause
	e.UpdatedAt = now

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	due := now.Add(e.Backoff())
	e.Status = OutboxStatusFailed
	e.NextRetryAt = &due
}

// Defer reschedules the entry for due without spending an attempt. It holds
// an order's later entries back while an earlier one is being retried.
func (e *OutboxEntry) Defer(due time.Time, reason string) {
	e.Status = OutboxStatusFailed
	e.LastError = reason
	e.NextRetryAt = &due
	e.UpdatedAt = time.Now()
}

// Backoff is the wait after the current attempt: base, 2*base, 4*base and so
// on, doubling per failed attempt
func (e *OutboxEntry) Backoff() time.Duration {
	base := e.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	if e.RetryCount < 2 {
		return base
	}
	return base << (e.RetryCount - 1)
}

// ResetForRetry puts a dead entry back on the queue with a fresh attempt
// budget. Any other status is an invalid transition.
func (e *OutboxEntry) ResetForRetry() error {
	if !e.IsDead() {
		return NewDomainError(CodeInvalidTransition, "only dead letters can be retried").
			WithDetail("status", string(e.Status))
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = time.Now()
	return nil
}

// OutboxRepository stores outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error

	// FindPending returns pending entries ordered by (order, sequence)
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries due at or before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)

	// MarkProcessing claims the given entries and returns those it won
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	// ReleaseStale hands entries stuck in PROCESSING since before back to
	// the retry queue
	ReleaseStale(ctx context.Context, before time.Time) (int64, error)
	// DeleteOlderThan removes sent entries processed before the cutoff
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

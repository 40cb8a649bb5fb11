package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Waits are the bounded lock waits of order-scoped commands
type Waits struct {
	// Transition is how long a lifecycle transition waits for the order.
	// Zero makes a concurrent transition fail immediately.
	Transition time.Duration
	// Ledger is how long ledger edits and invoice raises wait
	Ledger time.Duration
}

// DefaultWaits returns the default lock waits
func DefaultWaits() Waits {
	return Waits{Transition: 0, Ledger: 2 * time.Second}
}

// Recorder receives workflow counters
type Recorder interface {
	Committed(ctx context.Context, operation string, events int)
	Conflict(ctx context.Context, operation string)
	DispatchDegraded(ctx context.Context, operation string)
}

// TxFunc mutates aggregates through repos and returns the events to commit
type TxFunc func(ctx context.Context, repos TransactionalRepositories) ([]shared.DomainEvent, error)

// CommitFunc commits one transaction while the order lock is held
type CommitFunc func(fn TxFunc) error

// Outcome describes a committed command
type Outcome struct {
	// Events are the committed events with their sequence numbers
	Events []shared.DomainEvent
	// Degraded is set when the fast dispatch path failed. The events are in
	// the outbox and will still be delivered.
	Degraded bool
}

// Committer runs order-scoped commands
type Committer struct {
	scope     TransactionScope
	locker    shared.Locker
	sequencer shared.Sequencer
	fastPath  shared.EventPublisher
	recorder  Recorder
	logger    *zap.Logger
}

// Option configures a Committer
type Option func(*Committer)

// WithFastPath sets the publisher committed events are dispatched to right
// after the transaction commits
func WithFastPath(publisher shared.EventPublisher) Option {
	return func(c *Committer) {
		c.fastPath = publisher
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Committer) {
		c.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Committer) {
		c.logger = logger
	}
}

// NewCommitter creates a Committer
func NewCommitter(scope TransactionScope, locker shared.Locker, sequencer shared.Sequencer, opts ...Option) *Committer {
	c := &Committer{
		scope:     scope,
		locker:    locker,
		sequencer: sequencer,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run locks the order, commits fn and dispatches the events after the lock
// is released
func (c *Committer) Run(ctx context.Context, operation string, orderID uuid.UUID, wait time.Duration, fn TxFunc) (Outcome, error) {
	return c.RunLocked(ctx, operation, orderID, wait, func(ctx context.Context, commit CommitFunc) error {
		return commit(fn)
	})
}

// RunLocked holds the order lock while fn runs. fn may read, call external
// systems and commit any number of transactions through commit. Events of
// every successful commit are dispatched once the lock is released, even if
// fn then returns an error.
func (c *Committer) RunLocked(ctx context.Context, operation string, orderID uuid.UUID, wait time.Duration, fn func(ctx context.Context, commit CommitFunc) error) (Outcome, error) {
	var committed []shared.DomainEvent
	err := c.locked(ctx, operation, orderID, wait, func() error {
		return fn(ctx, func(tx TxFunc) error {
			events, err := c.commit(ctx, tx)
			if err != nil {
				return err
			}
			committed = append(committed, events...)
			return nil
		})
	})
	if err != nil && errors.Is(err, shared.ErrConflictingTransition) && c.recorder != nil {
		c.recorder.Conflict(ctx, operation)
	}

	outcome := Outcome{Events: committed}
	if len(committed) > 0 {
		if c.recorder != nil {
			c.recorder.Committed(ctx, operation, len(committed))
		}
		outcome.Degraded = !c.dispatch(ctx, operation, committed)
	}
	return outcome, err
}

func (c *Committer) locked(ctx context.Context, operation string, orderID uuid.UUID, wait time.Duration, fn func() error) error {
	release, err := c.locker.Acquire(ctx, shared.OrderLockKey(orderID), wait)
	if err != nil {
		c.logger.Debug("order lock busy",
			zap.String("operation", operation),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return err
	}
	defer release()
	return fn()
}

func (c *Committer) commit(ctx context.Context, fn TxFunc) ([]shared.DomainEvent, error) {
	var events []shared.DomainEvent
	err := c.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		evts, err := fn(ctx, repos)
		if err != nil {
			return err
		}
		seq := c.sequencer
		if p, ok := repos.(SequencerProvider); ok {
			seq = p.Sequencer()
		}
		if err := shared.StampSequences(ctx, seq, evts); err != nil {
			return fmt.Errorf("failed to stamp event sequence: %w", err)
		}
		if err := repos.SaveEvents(ctx, evts...); err != nil {
			return fmt.Errorf("failed to write outbox: %w", err)
		}
		events = evts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Committer) dispatch(ctx context.Context, operation string, events []shared.DomainEvent) bool {
	if c.fastPath == nil {
		return true
	}
	if err := c.fastPath.Publish(ctx, events...); err != nil {
		c.logger.Warn("fast-path dispatch degraded, outbox will redeliver",
			zap.String("code", shared.CodeDispatchDegraded),
			zap.String("operation", operation),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
		if c.recorder != nil {
			c.recorder.DispatchDegraded(ctx, operation)
		}
		return false
	}
	return true
}

// CollectEvents returns and clears the pending events of the aggregates in
// order
func CollectEvents(aggregates ...shared.AggregateRoot) []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, a := range aggregates {
		if a == nil {
			continue
		}
		out = append(out, a.GetDomainEvents()...)
		a.ClearDomainEvents()
	}
	return out
}

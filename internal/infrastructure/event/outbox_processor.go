package event

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxProcessorConfig tunes the delivery and housekeeping loops
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
	// StaleAfter is how long an entry may stay PROCESSING before another
	// processor takes it over
	StaleAfter time.Duration
}

// DefaultOutboxProcessorConfig returns the settings used when none are configured
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
		StaleAfter:       5 * time.Minute,
	}
}

// DeadLetterObserver is told about every entry that exhausted its retries
type DeadLetterObserver interface {
	OutboxDeadLettered(ctx context.Context, entry *shared.OutboxEntry)
}

// DeadLetterObserverFunc adapts a function to DeadLetterObserver
type DeadLetterObserverFunc func(ctx context.Context, entry *shared.OutboxEntry)

func (f DeadLetterObserverFunc) OutboxDeadLettered(ctx context.Context, entry *shared.OutboxEntry) {
	f(ctx, entry)
}

// OutboxProcessor is the slow path behind the post-commit dispatch. It
// redelivers committed events until every consumer accepted them. Within one
// batch an order's entries go out in sequence, and once one of them fails the
// order's later entries wait for it instead of overtaking it.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	observers  []DeadLetterObserver

	stop context.CancelFunc
	done chan struct{}
}

// NewOutboxProcessor creates a processor publishing through publisher
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	defaults := DefaultOutboxProcessorConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.CleanupRetention <= 0 {
		config.CleanupRetention = defaults.CleanupRetention
	}
	return &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     config,
		logger:     logger,
	}
}

// OnDeadLetter registers observers told about every dead-lettered entry
func (p *OutboxProcessor) OnDeadLetter(observers ...DeadLetterObserver) {
	p.observers = append(p.observers, observers...)
}

// Start runs the delivery loop, and the housekeeping when enabled, until Stop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.stop = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Bool("cleanup", p.config.CleanupEnabled),
	)
	return nil
}

// Stop ends the loop and waits for the batch in flight, or for ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.stop == nil {
		return nil
	}
	p.stop()
	select {
	case <-p.done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) run(ctx context.Context) {
	defer close(p.done)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	var housekeeping <-chan time.Time
	if p.config.CleanupEnabled && p.config.CleanupInterval > 0 {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		housekeeping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.ProcessBatch(ctx)
		case <-housekeeping:
			p.Cleanup(ctx)
		}
	}
}

// ProcessBatch hands stale claims back to the retry queue, then delivers one
// batch of new entries and one batch of entries due for retry. It returns how
// many entries were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	p.releaseStale(ctx)
	delivered := 0
	for _, source := range []struct {
		name string
		find func() ([]*shared.OutboxEntry, error)
	}{
		{"pending", func() ([]*shared.OutboxEntry, error) { return p.repo.FindPending(ctx, p.config.BatchSize) }},
		{"retryable", func() ([]*shared.OutboxEntry, error) {
			return p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
		}},
	} {
		entries, err := source.find()
		if err != nil {
			p.logger.Error("outbox query failed", zap.String("set", source.name), zap.Error(err))
			return delivered
		}
		if len(entries) > 0 {
			delivered += p.deliver(ctx, entries)
		}
	}
	return delivered
}

// deliver claims entries and publishes the ones it won in (order, sequence)
// order
func (p *OutboxProcessor) deliver(ctx context.Context, entries []*shared.OutboxEntry) int {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("outbox claim failed", zap.Int("entries", len(ids)), zap.Error(err))
		return 0
	}
	slices.SortStableFunc(claimed, func(a, b *shared.OutboxEntry) int {
		if c := strings.Compare(a.OrderID.String(), b.OrderID.String()); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	delivered := 0
	blocked := make(map[uuid.UUID]*shared.OutboxEntry)
	for _, entry := range claimed {
		if head, ok := blocked[entry.OrderID]; ok && entry.OrderID != uuid.Nil {
			p.holdBack(ctx, entry, head)
			continue
		}
		if p.publish(ctx, entry) {
			delivered++
			continue
		}
		blocked[entry.OrderID] = entry
	}
	return delivered
}

func (p *OutboxProcessor) publish(ctx context.Context, entry *shared.OutboxEntry) bool {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}
	if errors.Is(err, shared.ErrDeliveryInFlight) {
		// a concurrent delivery still holds a consumer's claim; look again
		// once it has settled
		entry.Defer(time.Now().Add(p.config.PollInterval), err.Error())
		if err := p.repo.Update(ctx, entry); err != nil {
			p.logger.Error("outbox entry not deferred", entryFields(entry, zap.Error(err))...)
		}
		return false
	}
	if err != nil {
		p.fail(ctx, entry, err)
		return false
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		// consumers already ran; the stale claim is released and the
		// idempotency guard absorbs the redelivery
		p.logger.Error("outbox entry not marked sent", entryFields(entry, zap.Error(err))...)
		return true
	}
	p.logger.Debug("outbox entry delivered", entryFields(entry)...)
	return true
}

// holdBack reschedules entry behind the failed head of its order without
// spending one of its attempts
func (p *OutboxProcessor) holdBack(ctx context.Context, entry, head *shared.OutboxEntry) {
	due := time.Now()
	if head.NextRetryAt != nil {
		due = *head.NextRetryAt
	}
	entry.Defer(due, fmt.Sprintf("waiting for sequence %d", head.Sequence))
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("outbox entry not deferred", entryFields(entry, zap.Error(err))...)
	}
}

func (p *OutboxProcessor) fail(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	entry.MarkFailed(cause.Error())
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("outbox failure not recorded", entryFields(entry, zap.Error(cause), zap.NamedError("update_error", err))...)
		return
	}
	if !entry.IsDead() {
		p.logger.Warn("outbox delivery failed", entryFields(entry, zap.Error(cause), zap.Timep("next_retry_at", entry.NextRetryAt))...)
		return
	}
	p.logger.Error("outbox entry dead-lettered", entryFields(entry, zap.Error(cause))...)
	for _, o := range p.observers {
		o.OutboxDeadLettered(ctx, entry)
	}
}

func entryFields(entry *shared.OutboxEntry, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("outbox_id", entry.ID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("order_id", entry.OrderID.String()),
		zap.Int64("sequence", entry.Sequence),
		zap.Int("retry_count", entry.RetryCount),
	}, extra...)
}

// Cleanup deletes sent entries past the retention
func (p *OutboxProcessor) Cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("outbox retention sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("outbox entries removed", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}

// releaseStale hands entries a crashed processor left claimed back to the
// retry queue. It runs on every poll, independent of the retention sweep.
func (p *OutboxProcessor) releaseStale(ctx context.Context) {
	if p.config.StaleAfter <= 0 {
		return
	}
	released, err := p.repo.ReleaseStale(ctx, time.Now().Add(-p.config.StaleAfter))
	if err != nil {
		p.logger.Error("outbox stale release failed", zap.Error(err))
		return
	}
	if released > 0 {
		p.logger.Warn("stale outbox claims released", zap.Int64("released", released))
	}
}

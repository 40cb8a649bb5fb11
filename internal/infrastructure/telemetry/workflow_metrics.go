package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/editdesk/backend/internal/application/workflow"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/event"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// OutboxStats reports outbox entry counts by status
type OutboxStats interface {
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// WorkflowMetrics counts order workflow commits, conflicts, degraded
// dispatches, consumer deliveries and dead-lettered outbox entries, and
// samples the outbox backlog.
type WorkflowMetrics struct {
	committed   *Counter
	events      *Counter
	conflicts   *Counter
	degraded    *Counter
	deadLetters *Counter
	deliveries  *Counter
	backlog     *Gauge

	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var (
	_ workflow.Recorder        = (*WorkflowMetrics)(nil)
	_ event.DeliveryObserver   = (*WorkflowMetrics)(nil)
	_ event.DeadLetterObserver = (*WorkflowMetrics)(nil)
)

// NewWorkflowMetrics creates the workflow instruments on meter
func NewWorkflowMetrics(meter metric.Meter, logger *zap.Logger) (*WorkflowMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &WorkflowMetrics{logger: logger, stopCh: make(chan struct{})}
	var err error
	if m.committed, err = NewCounter(meter, "editdesk_workflow_commits_total", "Committed order commands", "{command}"); err != nil {
		return nil, err
	}
	if m.events, err = NewCounter(meter, "editdesk_workflow_events_total", "Domain events committed to the outbox", "{event}"); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter, "editdesk_workflow_conflicts_total", "Commands that lost a concurrent modification race", "{command}"); err != nil {
		return nil, err
	}
	if m.degraded, err = NewCounter(meter, "editdesk_dispatch_degraded_total", "Commits whose fast-path dispatch failed", "{command}"); err != nil {
		return nil, err
	}
	if m.deadLetters, err = NewCounter(meter, "editdesk_outbox_dead_letters_total", "Outbox entries that exhausted their retries", "{entry}"); err != nil {
		return nil, err
	}
	if m.deliveries, err = NewCounter(meter, "editdesk_consumer_deliveries_total", "Event deliveries to consumers by outcome", "{delivery}"); err != nil {
		return nil, err
	}
	if m.backlog, err = NewGauge(meter, "editdesk_outbox_entries", "Outbox entries by status", "{entry}"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WorkflowMetrics) Committed(ctx context.Context, operation string, events int) {
	m.committed.Inc(ctx, AttrOperation.String(operation))
	m.events.Add(ctx, int64(events), AttrOperation.String(operation))
}

func (m *WorkflowMetrics) Conflict(ctx context.Context, operation string) {
	m.conflicts.Inc(ctx, AttrOperation.String(operation))
}

func (m *WorkflowMetrics) DispatchDegraded(ctx context.Context, operation string) {
	m.degraded.Inc(ctx, AttrOperation.String(operation))
}

// ConsumerDelivery counts one guarded delivery
func (m *WorkflowMetrics) ConsumerDelivery(ctx context.Context, consumer, eventType string, outcome event.DeliveryOutcome) {
	m.deliveries.Inc(ctx,
		AttrConsumer.String(consumer),
		AttrEventType.String(eventType),
		AttrOutcome.String(string(outcome)),
	)
}

// OutboxDeadLettered counts an entry that exhausted its retries
func (m *WorkflowMetrics) OutboxDeadLettered(ctx context.Context, entry *shared.OutboxEntry) {
	m.deadLetters.Inc(ctx, AttrEventType.String(entry.EventType))
}

// StartBacklogSampling records outbox counts every interval until Stop
func (m *WorkflowMetrics) StartBacklogSampling(ctx context.Context, stats OutboxStats, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			m.sampleBacklog(ctx, stats)
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *WorkflowMetrics) sampleBacklog(ctx context.Context, stats OutboxStats) {
	counts, err := stats.CountByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to sample outbox backlog", zap.Error(err))
		return
	}
	for _, status := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		m.backlog.Record(ctx, counts[status], AttrStatus.String(string(status)))
	}
}

// Stop ends backlog sampling. It is safe to call more than once.
func (m *WorkflowMetrics) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

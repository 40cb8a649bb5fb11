// Package activity turns committed order and ledger events into the order's
// activity log and the notifications fanned out from it.
package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultTopicPrefix prefixes every realtime topic
const DefaultTopicPrefix = "editdesk"

// Dispatcher appends one activity record per committed event and notifies
// the event's audience. Redelivery of an event is harmless: the record is
// keyed by (order, sequence) and notifications by (record, recipient).
type Dispatcher struct {
	records       activity.RecordRepository
	notifications activity.NotificationRepository
	directory     partner.Directory
	publisher     activity.Publisher
	topicPrefix   string
	logger        *zap.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	records activity.RecordRepository,
	notifications activity.NotificationRepository,
	directory partner.Directory,
	publisher activity.Publisher,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		records:       records,
		notifications: notifications,
		directory:     directory,
		publisher:     publisher,
		topicPrefix:   DefaultTopicPrefix,
		logger:        logger,
	}
}

// SetTopicPrefix overrides the realtime topic prefix
func (d *Dispatcher) SetTopicPrefix(prefix string) {
	if prefix != "" {
		d.topicPrefix = prefix
	}
}

// Name identifies the dispatcher in delivery keys
func (d *Dispatcher) Name() string { return "activity" }

// EventTypes returns the event types this handler is interested in
func (d *Dispatcher) EventTypes() []string {
	return HandledEventTypes()
}

// Handle records the event and enqueues its notifications. An error makes
// the outbox redeliver the event.
func (d *Dispatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	scoped, ok := event.(shared.OrderScopedEvent)
	if !ok {
		return fmt.Errorf("event %s is not order scoped", event.EventType())
	}
	e, err := describe(event)
	if err != nil {
		return err
	}

	record, err := activity.NewRecord(scoped, e.action, e.category, e.title, e.description, e.metadata)
	if err != nil {
		return err
	}
	stored, created, err := d.records.Append(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	if created {
		d.push(ctx, activity.OrderTopic(d.topicPrefix, stored.OrderID.String()), stored)
	}

	recipients, err := d.audience(ctx, stored, e)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	pending := make([]*activity.Notification, 0, len(recipients))
	for _, r := range recipients {
		pending = append(pending, activity.NewNotification(stored, r))
	}
	fresh, err := d.notifications.Enqueue(ctx, pending)
	if err != nil {
		return fmt.Errorf("failed to enqueue notifications: %w", err)
	}
	for _, n := range fresh {
		d.push(ctx, activity.RecipientTopic(d.topicPrefix, n.RecipientID.String()), n)
	}

	d.logger.Debug("activity dispatched",
		zap.String("order_id", stored.OrderID.String()),
		zap.Int64("sequence", stored.Sequence),
		zap.String("action", stored.Action),
		zap.Bool("duplicate", !created),
		zap.Int("notifications", len(fresh)),
	)
	return nil
}

func (d *Dispatcher) audience(ctx context.Context, record *activity.Record, e entry) ([]activity.Recipient, error) {
	admins, err := d.directory.ListAdmins(ctx, record.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partner admins: %w", err)
	}
	return activity.Audience(record.Action, activity.Participants{
		PartnerAdmins: admins,
		EditorID:      e.editorID,
		CustomerID:    e.customerID,
	}, record.ActorID), nil
}

// push is best effort; stored rows are the source of truth
func (d *Dispatcher) push(ctx context.Context, topic string, v any) {
	if d.publisher == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		d.logger.Error("failed to encode realtime payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := d.publisher.Publish(ctx, topic, payload); err != nil {
		d.logger.Warn("realtime publish failed",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}

// Ensure Dispatcher implements EventHandler
var _ shared.EventHandler = (*Dispatcher)(nil)

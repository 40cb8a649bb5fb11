package models

import (
	"time"

	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ActivityRecordModel is one append-only row of an order's history. The
// (order_id, sequence) pair is unique so a redelivered event cannot append
// twice.
type ActivityRecordModel struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_activity_order_seq,priority:1"`
	Sequence    int64            `gorm:"not null;uniqueIndex:idx_activity_order_seq,priority:2"`
	PartnerID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	EventID     uuid.UUID        `gorm:"type:uuid;not null"`
	ActorID     uuid.UUID        `gorm:"type:uuid;not null"`
	ActorRole   shared.ActorRole `gorm:"type:varchar(20);not null"`
	Action      string           `gorm:"type:varchar(50);not null"`
	Category    string           `gorm:"type:varchar(20);not null"`
	Title       string           `gorm:"type:varchar(200);not null"`
	Description string           `gorm:"type:text"`
	Metadata    []byte           `gorm:"type:jsonb"`
	CreatedAt   time.Time        `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ActivityRecordModel) TableName() string {
	return "activity_records"
}

// ToDomain converts the model to a domain Record
func (m *ActivityRecordModel) ToDomain() activity.Record {
	return activity.Record{
		ID:          m.ID,
		OrderID:     m.OrderID,
		Sequence:    m.Sequence,
		PartnerID:   m.PartnerID,
		EventID:     m.EventID,
		ActorID:     m.ActorID,
		ActorRole:   m.ActorRole,
		Action:      m.Action,
		Category:    activity.Category(m.Category),
		Title:       m.Title,
		Description: m.Description,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
	}
}

// ActivityRecordModelFromDomain creates a model from a domain Record
func ActivityRecordModelFromDomain(r *activity.Record) *ActivityRecordModel {
	return &ActivityRecordModel{
		ID:          r.ID,
		OrderID:     r.OrderID,
		Sequence:    r.Sequence,
		PartnerID:   r.PartnerID,
		EventID:     r.EventID,
		ActorID:     r.ActorID,
		ActorRole:   r.ActorRole,
		Action:      r.Action,
		Category:    string(r.Category),
		Title:       r.Title,
		Description: r.Description,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
	}
}

// NotificationModel is one recipient's copy of an activity record
type NotificationModel struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	RecipientID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_notification_activity_recipient,priority:2;index:idx_notification_inbox,priority:1"`
	RecipientRole shared.ActorRole `gorm:"type:varchar(20);not null"`
	OrderID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	ActivityID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_notification_activity_recipient,priority:1"`
	Sequence      int64            `gorm:"not null"`
	Category      string           `gorm:"type:varchar(20);not null"`
	Title         string           `gorm:"type:varchar(200);not null"`
	Body          string           `gorm:"type:text"`
	Read          bool             `gorm:"not null;default:false;index:idx_notification_inbox,priority:2"`
	ReadAt        *time.Time
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the model to a domain Notification
func (m *NotificationModel) ToDomain() activity.Notification {
	return activity.Notification{
		ID:            m.ID,
		RecipientID:   m.RecipientID,
		RecipientRole: m.RecipientRole,
		OrderID:       m.OrderID,
		ActivityID:    m.ActivityID,
		Sequence:      m.Sequence,
		Category:      activity.Category(m.Category),
		Title:         m.Title,
		Body:          m.Body,
		Read:          m.Read,
		ReadAt:        m.ReadAt,
		CreatedAt:     m.CreatedAt,
	}
}

// NotificationModelFromDomain creates a model from a domain Notification
func NotificationModelFromDomain(n *activity.Notification) *NotificationModel {
	return &NotificationModel{
		ID:            n.ID,
		RecipientID:   n.RecipientID,
		RecipientRole: n.RecipientRole,
		OrderID:       n.OrderID,
		ActivityID:    n.ActivityID,
		Sequence:      n.Sequence,
		Category:      string(n.Category),
		Title:         n.Title,
		Body:          n.Body,
		Read:          n.Read,
		ReadAt:        n.ReadAt,
		CreatedAt:     n.CreatedAt,
	}
}

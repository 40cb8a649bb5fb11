package activity

import (
	"context"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Notification is one recipient's copy of an activity. Reading or deleting
// it never affects the record it came from.
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	RecipientID   uuid.UUID        `json:"recipient_id"`
	RecipientRole shared.ActorRole `json:"recipient_role"`
	OrderID       uuid.UUID        `json:"order_id"`
	ActivityID    uuid.UUID        `json:"activity_id"`
	Sequence      int64            `json:"sequence"`
	Category      Category         `json:"category"`
	Title         string           `json:"title"`
	Body          string           `json:"body"`
	Read          bool             `json:"read"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewNotification creates an unread notification for a recipient
func NewNotification(record *Record, recipient Recipient) *Notification {
	return &Notification{
		ID:            uuid.New(),
		RecipientID:   recipient.ID,
		RecipientRole: recipient.Role,
		OrderID:       record.OrderID,
		ActivityID:    record.ID,
		Sequence:      record.Sequence,
		Category:      record.Category,
		Title:         record.Title,
		Body:          record.Description,
		Read:          false,
		CreatedAt:     time.Now(),
	}
}

// MarkRead marks the notification as read
func (n *Notification) MarkRead() {
	if n.Read {
		return
	}
	now := time.Now()
	n.Read = true
	n.ReadAt = &now
}

// NotificationFilter narrows a recipient's inbox
type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}

// NotificationRepository stores notifications
type NotificationRepository interface {
	// Enqueue stores notifications, skipping any (activity, recipient) pair
	// that already exists. It returns the newly stored ones.
	Enqueue(ctx context.Context, notifications []*Notification) ([]*Notification, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, filter NotificationFilter) ([]Notification, int64, error)
	MarkRead(ctx context.Context, recipientID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Delete(ctx context.Context, recipientID, id uuid.UUID) error
}

// Package activity holds the append-only audit trail of an order and the
// notifications fanned out from it.
package activity

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Category groups actions for audience selection and display
type Category string

const (
	CategoryLifecycle  Category = "lifecycle"
	CategoryDelivery   Category = "delivery"
	CategoryRevision   Category = "revision"
	CategoryBilling    Category = "billing"
	CategoryVisibility Category = "visibility"
)

// IsUserFacing reports whether records of this category appear in activity
// views. Visibility records are kept for audit only.
func (c Category) IsUserFacing() bool {
	return c != CategoryVisibility
}

// Record is one immutable entry of an order's history. There are no setters;
// the repository only appends and reads.
type Record struct {
	ID          uuid.UUID        `json:"id"`
	OrderID     uuid.UUID        `json:"order_id"`
	Sequence    int64            `json:"sequence"`
	PartnerID   uuid.UUID        `json:"partner_id"`
	EventID     uuid.UUID        `json:"event_id"`
	ActorID     uuid.UUID        `json:"actor_id"`
	ActorRole   shared.ActorRole `json:"actor_role"`
	Action      string           `json:"action"`
	Category    Category         `json:"category"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Metadata    json.RawMessage  `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewRecord creates a record for an order-scoped event. The event must have
// been stamped with its per-order sequence.
func NewRecord(event shared.OrderScopedEvent, action string, category Category, title, description string, metadata any) (*Record, error) {
	if event.Sequence() <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "event has no sequence")
	}
	var raw json.RawMessage
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Record{
		ID:          uuid.New(),
		OrderID:     event.OrderID(),
		Sequence:    event.Sequence(),
		PartnerID:   event.PartnerID(),
		EventID:     event.EventID(),
		ActorID:     event.ActorID(),
		ActorRole:   shared.ActorRole(event.ActorRole()),
		Action:      action,
		Category:    category,
		Title:       title,
		Description: description,
		Metadata:    raw,
		CreatedAt:   event.OccurredAt(),
	}, nil
}

// SortRecords orders records by sequence. Clocks of concurrent writers can
// disagree, so CreatedAt only breaks ties between orders.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Sequence != records[j].Sequence {
			return records[i].Sequence < records[j].Sequence
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// FilterUserFacing drops audit-only records. It is applied when reading, the
// store always keeps everything.
func FilterUserFacing(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Category.IsUserFacing() {
			out = append(out, r)
		}
	}
	return out
}

// View selects which records a reader gets
type View string

const (
	ViewUserFacing View = "user"
	ViewAudit      View = "audit"
)

// RecordRepository is append-only
type RecordRepository interface {
	// Append stores the record unless one already exists for the same
	// (order, sequence). The second return is false for such duplicates.
	Append(ctx context.Context, record *Record) (*Record, bool, error)
	// ListByOrder returns every record of the order in sequence order
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Record, error)
}

package fulfillment

import (
	"context"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderFilter narrows order listings
type OrderFilter struct {
	shared.Filter
	Statuses   []Status
	CustomerID *uuid.UUID
	EditorID   *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// OrderRepository persists orders
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindForPartner(ctx context.Context, partnerID uuid.UUID, filter OrderFilter) ([]Order, int64, error)
	Create(ctx context.Context, order *Order) error
	// SaveWithLock persists the order only if the stored version still equals
	// order.Version, then bumps the version. A version miss returns a
	// CONFLICTING_TRANSITION domain error and nothing is written.
	SaveWithLock(ctx context.Context, order *Order) error
}

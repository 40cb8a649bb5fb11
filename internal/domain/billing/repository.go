package billing

import (
	"context"

	"github.com/google/uuid"
)

// LedgerRepository persists ledgers
type LedgerRepository interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Ledger, error)
	Create(ctx context.Context, ledger *Ledger) error
	// FindByOrderIDs loads the ledgers of several orders keyed by order id.
	// Orders without a ledger are absent from the map.
	FindByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]*Ledger, error)
	// SaveWithLock replaces the ledger if its version still matches. A
	// version miss returns a CONFLICTING_TRANSITION domain error.
	SaveWithLock(ctx context.Context, ledger *Ledger) error
}

package shared

import (
	"context"

	"github.com/google/uuid"
)

// Sequencer hands out a monotonically increasing number per order. Gaps are
// allowed (a sequence reserved by a transaction that later loses its CAS is
// simply skipped); reuse is not.
type Sequencer interface {
	Next(ctx context.Context, orderID uuid.UUID) (int64, error)
}

// StampSequences assigns the next per-order sequence to every order-scoped
// event that does not carry one yet, in emission order.
func StampSequences(ctx context.Context, seq Sequencer, events []DomainEvent) error {
	for _, evt := range events {
		scoped, ok := evt.(OrderScopedEvent)
		if !ok || scoped.Sequence() > 0 {
			continue
		}
		n, err := seq.Next(ctx, scoped.OrderID())
		if err != nil {
			return err
		}
		scoped.SetSequence(n)
	}
	return nil
}

package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Locker serializes work on a key. Transitions and ledger operations of one
// order share the same key.
type Locker interface {
	// Acquire waits up to wait for the key. When the key is still held after
	// wait it returns ErrConflictingTransition. A zero wait is a try-lock.
	Acquire(ctx context.Context, key string, wait time.Duration) (release func(), err error)
}

// OrderLockKey is the lock key shared by an order and its ledger
func OrderLockKey(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

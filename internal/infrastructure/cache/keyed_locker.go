package cache

import (
	"context"
	"sync"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
)

// KeyedLocker is an in-process shared.Locker. It serializes work per key
// within one instance; use RedisLocker when several instances serve the same
// orders.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

// NewKeyedLocker creates a new in-process locker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*lockSlot)}
}

// Acquire implements shared.Locker
func (l *KeyedLocker) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	slot := l.ref(key)

	select {
	case slot.sem <- struct{}{}:
		return l.releaser(key, slot), nil
	default:
	}
	if wait <= 0 {
		l.unref(key)
		return nil, lockBusy(key)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case slot.sem <- struct{}{}:
		return l.releaser(key, slot), nil
	case <-timer.C:
		l.unref(key)
		return nil, lockBusy(key)
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	}
}

func (l *KeyedLocker) releaser(key string, slot *lockSlot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			l.unref(key)
		})
	}
}

func (l *KeyedLocker) ref(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *KeyedLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func lockBusy(key string) error {
	return shared.ErrConflictingTransition.WithDetail("lock", key)
}

var _ shared.Locker = (*KeyedLocker)(nil)

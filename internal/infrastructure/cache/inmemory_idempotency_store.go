package cache

import (
	"context"
	"sync"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps delivery claims in a map with a deadline per
// key. Claims are only visible to this process, so it serves single-instance
// deployments and tests; several instances need the Redis store.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	claims map[string]claim
	now    func() time.Time

	sweepEvery time.Duration
	done       chan struct{}
	closed     sync.Once
	sweeper    sync.WaitGroup
}

type claim struct {
	deadline time.Time
	done     bool
}

// MemoryStoreOption configures an InMemoryIdempotencyStore
type MemoryStoreOption func(*InMemoryIdempotencyStore)

// WithSweepInterval sets how often expired claims are dropped
func WithSweepInterval(d time.Duration) MemoryStoreOption {
	return func(s *InMemoryIdempotencyStore) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

// NewInMemoryIdempotencyStore starts a store and its sweeper. Close stops it.
func NewInMemoryIdempotencyStore(opts ...MemoryStoreOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		claims:     make(map[string]claim),
		now:        time.Now,
		sweepEvery: defaultSweepInterval,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sweeper.Add(1)
	go s.sweepLoop()
	return s
}

// MarkProcessed claims key for ttl. It reports false while an unexpired claim
// exists.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.claims[key]; ok && now.Before(c.deadline) {
		return false, nil
	}
	s.claims[key] = claim{deadline: now.Add(ttl)}
	return true, nil
}

// Complete marks key done for ttl, claimed or not
func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[key] = claim{deadline: s.now().Add(ttl), done: true}
	return nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[key]
	return ok && c.done && s.now().Before(c.deadline), nil
}

func (s *InMemoryIdempotencyStore) Unmark(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Len is the number of claims held, expired ones included until swept
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

// Close stops the sweeper. Calling it again is a no-op.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closed.Do(func() {
		close(s.done)
		s.sweeper.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.sweeper.Done()
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops expired claims and returns how many it dropped
func (s *InMemoryIdempotencyStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for key, c := range s.claims {
		if !now.Before(c.deadline) {
			delete(s.claims, key)
			dropped++
		}
	}
	return dropped
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

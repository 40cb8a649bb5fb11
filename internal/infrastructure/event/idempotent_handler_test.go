package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	args := m.Called(ctx, key, ttl)
	return args.Error(0)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Unmark(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

type deliveryLog struct {
	mu       sync.Mutex
	outcomes []DeliveryOutcome
	consumer string
}

func (l *deliveryLog) ConsumerDelivery(_ context.Context, consumer, _ string, outcome DeliveryOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumer = consumer
	l.outcomes = append(l.outcomes, outcome)
}

func (l *deliveryLog) got() []DeliveryOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DeliveryOutcome(nil), l.outcomes...)
}

// slowHandler blocks every Handle until release is closed
type slowHandler struct {
	*testHandler
	entered     chan struct{}
	release     chan struct{}
	enteredOnce sync.Once
}

func newSlowHandler() *slowHandler {
	return &slowHandler{
		testHandler: newTestHandler(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (h *slowHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.enteredOnce.Do(func() { close(h.entered) })
	<-h.release
	return h.testHandler.Handle(ctx, event)
}

func newMemoryStore(t *testing.T) *cache.InMemoryIdempotencyStore {
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIdempotentHandler_SameSequenceHandledOnce(t *testing.T) {
	inner := newTestHandler("OrderAccepted")
	log := &deliveryLog{}
	handler := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop(),
		WithHandlerName("activity"),
		WithDeliveryObserver(log),
	)

	orderID := uuid.New()
	first := newSequencedEvent("OrderAccepted", orderID, 3)
	// A replay from the outbox decodes into a new value with the same key
	replay := newSequencedEvent("OrderAccepted", orderID, 3)

	require.NoError(t, handler.Handle(context.Background(), first))
	require.NoError(t, handler.Handle(context.Background(), replay))
	require.NoError(t, handler.Handle(context.Background(), replay))

	assert.Equal(t, 1, len(inner.getHandled()))
	assert.Equal(t, []DeliveryOutcome{DeliveryHandled, DeliveryDuplicate, DeliveryDuplicate}, log.got())
	assert.Equal(t, "activity", log.consumer)
}

func TestIdempotentHandler_DistinctSequencesBothHandled(t *testing.T) {
	inner := newTestHandler()
	handler := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop())

	orderID := uuid.New()
	require.NoError(t, handler.Handle(context.Background(), newSequencedEvent("OrderAccepted", orderID, 1)))
	require.NoError(t, handler.Handle(context.Background(), newSequencedEvent("OrderAccepted", orderID, 2)))
	require.NoError(t, handler.Handle(context.Background(), newSequencedEvent("OrderAccepted", uuid.New(), 1)))

	assert.Equal(t, 3, len(inner.getHandled()))
}

func TestIdempotentHandler_HandlersAreKeyedSeparately(t *testing.T) {
	store := newMemoryStore(t)
	a := newTestHandler()
	b := newTestHandler()
	ha := NewIdempotentHandler(a, store, zap.NewNop(), WithHandlerName("activity"))
	hb := NewIdempotentHandler(b, store, zap.NewNop(), WithHandlerName("invoice"))

	evt := newSequencedEvent("OrderApproved", uuid.New(), 7)
	require.NoError(t, ha.Handle(context.Background(), evt))
	require.NoError(t, hb.Handle(context.Background(), evt))

	assert.Equal(t, 1, len(a.getHandled()))
	assert.Equal(t, 1, len(b.getHandled()))
	assert.NotEqual(t, ha.DeliveryKey(evt), hb.DeliveryKey(evt))
	assert.Equal(t, "activity:"+evt.OrderID().String()+":7", ha.DeliveryKey(evt))
}

func TestIdempotentHandler_FailureReleasesKeyForRedelivery(t *testing.T) {
	inner := newTestHandler()
	inner.err = errors.New("ledger unavailable")
	log := &deliveryLog{}
	handler := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop(), WithDeliveryObserver(log))

	evt := newSequencedEvent("OrderApproved", uuid.New(), 4)
	err := handler.Handle(context.Background(), evt)
	require.Error(t, err)

	inner.setError(nil)
	require.NoError(t, handler.Handle(context.Background(), evt))

	assert.Equal(t, 2, len(inner.getHandled()))
	assert.Equal(t, []DeliveryOutcome{DeliveryFailed, DeliveryHandled}, log.got())
}

func TestIdempotentHandler_DeliveryDuringRunningOneIsNotCountedAsDone(t *testing.T) {
	inner := newSlowHandler()
	inner.setError(errors.New("ledger unavailable"))
	log := &deliveryLog{}
	handler := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop(),
		WithHandlerName("invoicing"),
		WithDeliveryObserver(log),
	)
	ctx := context.Background()
	orderID := uuid.New()

	first := make(chan error, 1)
	go func() { first <- handler.Handle(ctx, newSequencedEvent("OrderApproved", orderID, 5)) }()
	<-inner.entered

	err := handler.Handle(ctx, newSequencedEvent("OrderApproved", orderID, 5))
	require.ErrorIs(t, err, shared.ErrDeliveryInFlight)

	close(inner.release)
	require.Error(t, <-first)

	inner.setError(nil)
	require.NoError(t, handler.Handle(ctx, newSequencedEvent("OrderApproved", orderID, 5)))
	assert.Len(t, inner.getHandled(), 2)
	assert.Equal(t, []DeliveryOutcome{DeliveryInFlight, DeliveryFailed, DeliveryHandled}, log.got())
}

func TestIdempotentHandler_ExpiredClaimIsTakenOver(t *testing.T) {
	store := newMemoryStore(t)
	inner := newTestHandler()
	handler := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithHandlerName("activity"),
		WithIdempotencyConfig(shared.IdempotencyConfig{TTL: time.Hour, ClaimTTL: 20 * time.Millisecond, Enabled: true}),
	)
	evt := newSequencedEvent("OrderAccepted", uuid.New(), 2)

	// a holder that died before completing
	_, err := store.MarkProcessed(context.Background(), handler.DeliveryKey(evt), 20*time.Millisecond)
	require.NoError(t, err)
	require.ErrorIs(t, handler.Handle(context.Background(), evt), shared.ErrDeliveryInFlight)

	assert.Eventually(t, func() bool {
		return handler.Handle(context.Background(), evt) == nil
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, inner.getHandled(), 1)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.New("redis down"))
	store.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("redis down"))

	inner := newTestHandler()
	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, handler.Handle(context.Background(), newSequencedEvent("OrderAccepted", uuid.New(), 1)))
	assert.Equal(t, 1, len(inner.getHandled()))
	store.AssertExpectations(t)
}

func TestIdempotentHandler_UsesConfiguredTTL(t *testing.T) {
	store := new(MockIdempotencyStore)
	evt := newSequencedEvent("OrderAccepted", uuid.New(), 9)
	store.On("MarkProcessed", mock.Anything, "h:"+shared.DedupKey(evt), time.Minute).Return(true, nil)
	store.On("Complete", mock.Anything, "h:"+shared.DedupKey(evt), 48*time.Hour).Return(nil)

	handler := NewIdempotentHandler(newTestHandler(), store, zap.NewNop(),
		WithHandlerName("h"),
		WithIdempotencyConfig(shared.IdempotencyConfig{TTL: 48 * time.Hour, ClaimTTL: time.Minute, Enabled: true}),
	)

	require.NoError(t, handler.Handle(context.Background(), evt))
	store.AssertExpectations(t)
}

func TestIdempotentHandler_DisabledBypassesStore(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := newTestHandler()
	handler := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
	)

	evt := newSequencedEvent("OrderAccepted", uuid.New(), 1)
	require.NoError(t, handler.Handle(context.Background(), evt))
	require.NoError(t, handler.Handle(context.Background(), evt))

	assert.Equal(t, 2, len(inner.getHandled()))
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_DelegatesEventTypes(t *testing.T) {
	inner := newTestHandler("OrderCreated", "OrderApproved")
	handler := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop())

	assert.Equal(t, []string{"OrderCreated", "OrderApproved"}, handler.EventTypes())
	assert.Same(t, inner, handler.Inner())
	assert.Equal(t, inner.Name(), handler.Name())
}

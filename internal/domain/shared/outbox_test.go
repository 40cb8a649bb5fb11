package shared

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOrderEvent struct {
	BaseDomainEvent
}

func newTestOrderEvent(orderID uuid.UUID) *testOrderEvent {
	return &testOrderEvent{
		BaseDomainEvent: NewBaseDomainEvent("TestOrderEvent", "Order", orderID, uuid.New(), orderID, SystemActor),
	}
}

type counterSequencer struct {
	next map[uuid.UUID]int64
}

func (s *counterSequencer) Next(_ context.Context, orderID uuid.UUID) (int64, error) {
	if s.next == nil {
		s.next = make(map[uuid.UUID]int64)
	}
	s.next[orderID]++
	return s.next[orderID], nil
}

func TestNewOutboxEntry_CarriesOrderKey(t *testing.T) {
	orderID := uuid.New()
	evt := newTestOrderEvent(orderID)
	evt.SetSequence(7)

	entry := NewOutboxEntry(evt, []byte(`{}`))

	assert.Equal(t, orderID, entry.OrderID)
	assert.Equal(t, int64(7), entry.Sequence)
	assert.Equal(t, evt.PartnerID(), entry.PartnerID)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.Equal(t, orderID.String()+":7", DedupKey(evt))
}

func TestStampSequences(t *testing.T) {
	orderA, orderB := uuid.New(), uuid.New()
	seq := &counterSequencer{}

	first := newTestOrderEvent(orderA)
	second := newTestOrderEvent(orderA)
	other := newTestOrderEvent(orderB)
	already := newTestOrderEvent(orderA)
	already.SetSequence(99)

	err := StampSequences(context.Background(), seq, []DomainEvent{first, second, other, already})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Sequence())
	assert.Equal(t, int64(2), second.Sequence())
	assert.Equal(t, int64(1), other.Sequence())
	assert.Equal(t, int64(99), already.Sequence())
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	t.Run("resets dead letter entry for retry", func(t *testing.T) {
		entry := &OutboxEntry{
			ID:         uuid.New(),
			OrderID:    uuid.New(),
			Sequence:   3,
			EventType:  "TestOrderEvent",
			Status:     OutboxStatusDead,
			RetryCount: 5,
			MaxRetries: 5,
			LastError:  "broker unavailable",
			CreatedAt:  time.Now().Add(-time.Hour),
			UpdatedAt:  time.Now().Add(-time.Minute),
		}

		err := entry.ResetForRetry()
		assert.NoError(t, err)
		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Equal(t, 0, entry.RetryCount)
		assert.Empty(t, entry.LastError)
		assert.Nil(t, entry.NextRetryAt)
	})

	t.Run("fails for non-dead entry", func(t *testing.T) {
		for _, status := range []OutboxStatus{
			OutboxStatusPending,
			OutboxStatusProcessing,
			OutboxStatusSent,
			OutboxStatusFailed,
		} {
			entry := &OutboxEntry{ID: uuid.New(), Status: status}
			err := entry.ResetForRetry()
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, status, entry.Status)
		}
	})
}

func TestOutboxEntry_MarkFailed_MovesToDeadAfterMaxRetries(t *testing.T) {
	entry := &OutboxEntry{
		ID:         uuid.New(),
		Status:     OutboxStatusProcessing,
		RetryCount: 4,
		MaxRetries: 5,
	}

	entry.MarkFailed("final error")

	assert.Equal(t, OutboxStatusDead, entry.Status)
	assert.Equal(t, 5, entry.RetryCount)
	assert.Equal(t, "final error", entry.LastError)
	assert.Nil(t, entry.NextRetryAt)
	assert.True(t, entry.IsDead())
}

func TestOutboxEntry_MarkFailed_ExponentialBackoff(t *testing.T) {
	entry := &OutboxEntry{
		ID:          uuid.New(),
		Status:      OutboxStatusProcessing,
		MaxRetries:  5,
		BaseBackoff: 100 * time.Millisecond,
	}

	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, want := range expected {
		entry.Status = OutboxStatusProcessing
		entry.MarkFailed("publish failed")
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, i+1, entry.RetryCount)
		assert.Equal(t, want, entry.Backoff())
		require.NotNil(t, entry.NextRetryAt)
		assert.False(t, entry.IsDead())
	}
}

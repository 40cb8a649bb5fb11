package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *MockOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	args := m.Called(ctx, page, pageSize)
	entries, _ := args.Get(0).([]*shared.OutboxEntry)
	return entries, args.Get(1).(int64), args.Error(2)
}

func (m *MockOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*shared.OutboxEntry)
	return entry, args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) ReleaseStale(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[shared.OutboxStatus]int64)
	return counts, args.Error(1)
}

var _ shared.OutboxRepository = (*MockOutboxRepository)(nil)

func deadEntry(eventType string) *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:         uuid.New(),
		PartnerID:  uuid.New(),
		OrderID:    uuid.New(),
		Sequence:   3,
		EventID:    uuid.New(),
		EventType:  eventType,
		Status:     shared.OutboxStatusDead,
		RetryCount: shared.DefaultMaxRetries,
		MaxRetries: shared.DefaultMaxRetries,
		LastError:  "ledger unavailable",
	}
}

func TestOutboxService_DeadLetters(t *testing.T) {
	ctx := context.Background()

	t.Run("pages with defaults", func(t *testing.T) {
		repo := new(MockOutboxRepository)
		entries := []*shared.OutboxEntry{deadEntry("order.approved"), deadEntry("invoice.raised")}
		repo.On("FindDead", ctx, 1, 20).Return(entries, int64(45), nil)

		result, err := NewOutboxService(repo, zap.NewNop()).DeadLetters(ctx, OutboxFilter{})
		require.NoError(t, err)

		assert.Len(t, result.Entries, 2)
		assert.Equal(t, int64(45), result.Total)
		assert.Equal(t, 3, result.TotalPages)
		assert.Equal(t, entries[0].OrderID, result.Entries[0].OrderID)
		assert.Equal(t, int64(3), result.Entries[0].Sequence)
		assert.Equal(t, "DEAD", result.Entries[0].Status)
		repo.AssertExpectations(t)
	})

	t.Run("caps page size", func(t *testing.T) {
		repo := new(MockOutboxRepository)
		repo.On("FindDead", ctx, 2, 100).Return([]*shared.OutboxEntry{}, int64(0), nil)

		result, err := NewOutboxService(repo, zap.NewNop()).DeadLetters(ctx, OutboxFilter{Page: 2, PageSize: 500})
		require.NoError(t, err)
		assert.Equal(t, 100, result.PageSize)
		assert.Equal(t, 0, result.TotalPages)
	})

	t.Run("surfaces storage errors", func(t *testing.T) {
		repo := new(MockOutboxRepository)
		repo.On("FindDead", ctx, 1, 20).Return(nil, int64(0), errors.New("connection refused"))

		_, err := NewOutboxService(repo, zap.NewNop()).DeadLetters(ctx, OutboxFilter{})
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestOutboxService_Retry(t *testing.T) {
	ctx := context.Background()

	t.Run("requeues a dead letter", func(t *testing.T) {
		repo := new(MockOutboxRepository)
		entry := deadEntry("order.approved")
		repo.On("FindByID", ctx, entry.ID).Return(entry, nil)
		repo.On("Update", ctx, entry).Return(nil)

		dto, err := NewOutboxService(repo, zap.NewNop()).Retry(ctx, entry.ID)
		require.NoError(t, err)

		assert.Equal(t, "PENDING", dto.Status)
		assert.Equal(t, 0, dto.RetryCount)
		assert.Empty(t, dto.LastError)
		repo.AssertExpectations(t)
	})

	t.Run("unknown entry", func(t *testing.T) {
		repo := new(MockOutboxRepository)
		id := uuid.New()
		repo.On("FindByID", ctx, id).Return(nil, nil)

		_, err := NewOutboxService(repo, zap.NewNop()).Retry(ctx, id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("entry still in flight", func(t *testing.T) {
		repo := new(MockOutboxRepository)
		entry := deadEntry("order.approved")
		entry.Status = shared.OutboxStatusFailed
		repo.On("FindByID", ctx, entry.ID).Return(entry, nil)

		_, err := NewOutboxService(repo, zap.NewNop()).Retry(ctx, entry.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestOutboxService_RetryAll(t *testing.T) {
	ctx := context.Background()
	repo := new(MockOutboxRepository)

	entries := []*shared.OutboxEntry{deadEntry("a"), deadEntry("b"), deadEntry("c")}
	repo.On("FindDead", ctx, 1, 100).Return(entries, int64(3), nil).Once()
	repo.On("Update", ctx, entries[0]).Return(nil)
	repo.On("Update", ctx, entries[1]).Return(errors.New("deadlock"))
	repo.On("Update", ctx, entries[2]).Return(nil)

	count, err := NewOutboxService(repo, zap.NewNop()).RetryAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), count)
	repo.AssertExpectations(t)
}

func TestOutboxService_Stats(t *testing.T) {
	ctx := context.Background()
	repo := new(MockOutboxRepository)
	repo.On("CountByStatus", ctx).Return(map[shared.OutboxStatus]int64{
		shared.OutboxStatusPending: 4,
		shared.OutboxStatusSent:    90,
		shared.OutboxStatusDead:    1,
	}, nil)

	stats, err := NewOutboxService(repo, zap.NewNop()).Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Pending)
	assert.Equal(t, int64(0), stats.Processing)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(95), stats.Total)
}

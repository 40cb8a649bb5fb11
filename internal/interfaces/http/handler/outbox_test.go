package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/editdesk/backend/internal/application/event"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOutboxAdmin struct {
	mock.Mock
}

func (m *mockOutboxAdmin) DeadLetters(ctx context.Context, filter event.OutboxFilter) (*event.OutboxListResult, error) {
	args := m.Called(ctx, filter)
	if r := args.Get(0); r != nil {
		return r.(*event.OutboxListResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxAdmin) Entry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*event.OutboxEntryDTO), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxAdmin) Retry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*event.OutboxEntryDTO), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxAdmin) RetryAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxAdmin) Stats(ctx context.Context) (*event.OutboxStatsDTO, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*event.OutboxStatsDTO), args.Error(1)
	}
	return nil, args.Error(1)
}

var testOperator = shared.Actor{ID: uuid.MustParse("44444444-4444-4444-8444-444444444444"), Role: shared.ActorRoleSystem}

func setupOutboxRouter(o OutboxAdmin) *gin.Engine {
	h := NewOutboxHandler(o)
	r := newTestRouter()
	r.GET("/system/outbox/dead", h.DeadLetters)
	r.POST("/system/outbox/dead/retry-all", h.RetryAll)
	r.GET("/system/outbox/stats", h.Stats)
	r.GET("/system/outbox/:id", h.Entry)
	r.POST("/system/outbox/:id/retry", h.Retry)
	return r
}

func TestOutboxHandler_DeadLetters(t *testing.T) {
	o := new(mockOutboxAdmin)
	o.On("DeadLetters", mock.Anything, event.OutboxFilter{Page: 2, PageSize: 10}).Return(&event.OutboxListResult{
		Entries:  []event.OutboxEntryDTO{{ID: uuid.New(), EventType: "order.approved", Status: "dead"}},
		Total:    11,
		Page:     2,
		PageSize: 10,
	}, nil)

	w := doJSON(setupOutboxRouter(o), http.MethodGet, "/system/outbox/dead?page=2&page_size=10", testOperator, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Len(t, resp.Data, 1)
}

func TestOutboxHandler_Retry(t *testing.T) {
	t.Run("requeued", func(t *testing.T) {
		o := new(mockOutboxAdmin)
		id := uuid.New()
		o.On("Retry", mock.Anything, id).Return(&event.OutboxEntryDTO{ID: id, Status: "pending"}, nil)

		w := doJSON(setupOutboxRouter(o), http.MethodPost, "/system/outbox/"+id.String()+"/retry", testOperator, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pending", decode(t, w).Data.(map[string]any)["status"])
	})

	t.Run("entry is not dead", func(t *testing.T) {
		o := new(mockOutboxAdmin)
		id := uuid.New()
		o.On("Retry", mock.Anything, id).Return(nil, shared.ErrInvalidTransition)

		w := doJSON(setupOutboxRouter(o), http.MethodPost, "/system/outbox/"+id.String()+"/retry", testOperator, "")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOutboxHandler_RetryAllAndStats(t *testing.T) {
	o := new(mockOutboxAdmin)
	o.On("RetryAll", mock.Anything).Return(int64(5), nil)
	o.On("Stats", mock.Anything).Return(&event.OutboxStatsDTO{Pending: 5, Dead: 0, Total: 5}, nil)
	r := setupOutboxRouter(o)

	w := doJSON(r, http.MethodPost, "/system/outbox/dead/retry-all", testOperator, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), decode(t, w).Data.(map[string]any)["count"])

	w = doJSON(r, http.MethodGet, "/system/outbox/stats", testOperator, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), decode(t, w).Data.(map[string]any)["pending"])
}

package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/editdesk/backend/internal/application/reporting"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockReports struct {
	mock.Mock
}

func (m *mockReports) Build(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter reporting.ReportFilter) (*reporting.OrderReport, error) {
	args := m.Called(ctx, partnerID, actor, filter)
	if r := args.Get(0); r != nil {
		return r.(*reporting.OrderReport), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReports) Export(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter reporting.ReportFilter) ([]byte, error) {
	args := m.Called(ctx, partnerID, actor, filter)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func setupReportRouter(reports OrderReports) *gin.Engine {
	h := NewReportHandler(reports)
	r := newTestRouter()
	r.GET("/reports/orders", h.Summary)
	r.GET("/reports/orders/export", h.Export)
	return r
}

func TestReportHandler_Summary(t *testing.T) {
	reports := new(mockReports)
	reports.On("Build", mock.Anything, testPartnerID, testAdmin, mock.MatchedBy(func(f reporting.ReportFilter) bool {
		return len(f.Statuses) == 1 && f.Statuses[0] == "completed" && f.From != nil
	})).Return(&reporting.OrderReport{PartnerID: testPartnerID, Orders: 4}, nil)

	w := doJSON(setupReportRouter(reports), http.MethodGet, "/reports/orders?status=completed&from=2026-01-01", testAdmin, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decode(t, w).Data.(map[string]any)["orders"])
	reports.AssertExpectations(t)
}

func TestReportHandler_Export(t *testing.T) {
	t.Run("workbook", func(t *testing.T) {
		reports := new(mockReports)
		reports.On("Export", mock.Anything, testPartnerID, testAdmin, reporting.ReportFilter{}).Return([]byte("PK-xlsx"), nil)

		w := doJSON(setupReportRouter(reports), http.MethodGet, "/reports/orders/export", testAdmin, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
		assert.Equal(t, "7", w.Header().Get("Content-Length"))
		assert.Equal(t, "PK-xlsx", w.Body.String())
	})

	t.Run("admins only", func(t *testing.T) {
		reports := new(mockReports)
		reports.On("Export", mock.Anything, testPartnerID, testEditor, mock.Anything).Return(nil, shared.ErrForbiddenActor)

		w := doJSON(setupReportRouter(reports), http.MethodGet, "/reports/orders/export", testEditor, "")

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

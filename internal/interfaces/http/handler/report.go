package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/editdesk/backend/internal/application/reporting"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// OrderReports builds order reports
type OrderReports interface {
	Build(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter reporting.ReportFilter) (*reporting.OrderReport, error)
	Export(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter reporting.ReportFilter) ([]byte, error)
}

// ReportHandler serves order reports
type ReportHandler struct {
	BaseHandler
	reports OrderReports
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports OrderReports) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Summary handles GET /reports/orders
func (h *ReportHandler) Summary(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	var filter reporting.ReportFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	report, err := h.reports.Build(c.Request.Context(), partnerID, actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Export handles GET /reports/orders/export and returns the workbook
func (h *ReportHandler) Export(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	var filter reporting.ReportFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	data, err := h.reports.Export(c.Request.Context(), partnerID, actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	fileName := "orders-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Header("Content-Length", itoa(int64(len(data))))
	c.Data(http.StatusOK, xlsxContentType, data)
}

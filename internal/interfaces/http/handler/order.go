package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	fulfillmentapp "github.com/editdesk/backend/internal/application/fulfillment"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/logger"
	"github.com/editdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderWorkflow is the order lifecycle as used by the HTTP layer
type OrderWorkflow interface {
	PlaceOrder(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, req fulfillmentapp.PlaceOrderRequest) (*fulfillmentapp.TransitionResult, error)
	Accept(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req fulfillmentapp.AcceptOrderRequest) (*fulfillmentapp.TransitionResult, error)
	Decline(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req fulfillmentapp.DeclineOrderRequest) (*fulfillmentapp.TransitionResult, error)
	MarkComplete(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error)
	RequestRevision(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req fulfillmentapp.RequestRevisionRequest) (*fulfillmentapp.TransitionResult, error)
	Approve(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error)
	UploadDeliverables(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, files []fulfillment.UploadSource, onProgress fulfillmentapp.ProgressObserver) (*fulfillmentapp.UploadResult, error)
	SetDeliverableVisibility(ctx context.Context, partnerID, orderID, deliverableID uuid.UUID, actor shared.Actor, visible bool) (*fulfillmentapp.TransitionResult, error)
	Get(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.OrderResponse, error)
	List(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter fulfillmentapp.OrderListFilter) ([]fulfillmentapp.OrderListItemResponse, int64, error)
	DownloadDeliverables(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, w io.Writer) error
}

// OrderHandler serves the order lifecycle
type OrderHandler struct {
	BaseHandler
	workflow OrderWorkflow
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(workflow OrderWorkflow) *OrderHandler {
	return &OrderHandler{workflow: workflow}
}

// Place handles POST /orders
func (h *OrderHandler) Place(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	var req fulfillmentapp.PlaceOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.workflow.PlaceOrder(c.Request.Context(), partnerID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Committed(c, result, result.Degraded, true)
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	var filter fulfillmentapp.OrderListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	orders, total, err := h.workflow.List(c.Request.Context(), partnerID, actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, orders, total, page, pageSize)
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	order, err := h.workflow.Get(c.Request.Context(), partnerID, orderID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Accept handles POST /orders/:id/accept
func (h *OrderHandler) Accept(c *gin.Context) {
	var req fulfillmentapp.AcceptOrderRequest
	h.transition(c, &req, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error) {
		return h.workflow.Accept(ctx, partnerID, orderID, actor, req)
	})
}

// Decline handles POST /orders/:id/decline
func (h *OrderHandler) Decline(c *gin.Context) {
	var req fulfillmentapp.DeclineOrderRequest
	h.transition(c, &req, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error) {
		return h.workflow.Decline(ctx, partnerID, orderID, actor, req)
	})
}

// MarkComplete handles POST /orders/:id/complete
func (h *OrderHandler) MarkComplete(c *gin.Context) {
	h.transition(c, nil, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error) {
		return h.workflow.MarkComplete(ctx, partnerID, orderID, actor)
	})
}

// RequestRevision handles POST /orders/:id/revisions
func (h *OrderHandler) RequestRevision(c *gin.Context) {
	var req fulfillmentapp.RequestRevisionRequest
	h.transition(c, &req, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error) {
		return h.workflow.RequestRevision(ctx, partnerID, orderID, actor, req)
	})
}

// Approve handles POST /orders/:id/approve
func (h *OrderHandler) Approve(c *gin.Context) {
	h.transition(c, nil, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error) {
		return h.workflow.Approve(ctx, partnerID, orderID, actor)
	})
}

// SetDeliverableVisibility handles PATCH /orders/:id/deliverables/:deliverableId
func (h *OrderHandler) SetDeliverableVisibility(c *gin.Context) {
	var req fulfillmentapp.SetVisibilityRequest
	h.transition(c, &req, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error) {
		deliverableID, err := uuid.Parse(c.Param("deliverableId"))
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid deliverableId")
		}
		return h.workflow.SetDeliverableVisibility(ctx, partnerID, orderID, deliverableID, actor, *req.Visible)
	})
}

// transition runs one lifecycle command. A nil body means the command takes
// no input; an empty body is accepted for commands with optional fields.
func (h *OrderHandler) transition(c *gin.Context, body any, run func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillmentapp.TransitionResult, error)) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	if body != nil && c.Request.ContentLength != 0 {
		if !h.bindJSON(c, body) {
			return
		}
	} else if body != nil {
		if err := validateEmpty(body); err != nil {
			h.bindError(c, err)
			return
		}
	}

	result, err := run(c.Request.Context(), partnerID, orderID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Committed(c, result, result.Degraded, false)
}

// Upload handles POST /orders/:id/deliverables as multipart/form-data with
// one or more "files" parts
func (h *OrderHandler) Upload(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		h.BadRequest(c, "Expected a multipart form with files")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		h.BadRequest(c, "At least one file is required")
		return
	}

	sources, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	result, err := h.workflow.UploadDeliverables(ctx, partnerID, orderID, actor, sources, func(itemID uuid.UUID, transferred int64) {
		logger.L(ctx).Debug("deliverable upload progress",
			zap.String("item_id", itemID.String()),
			zap.Int64("transferred", transferred),
		)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Order == nil {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeStorageUnavailable, "No file could be stored", getRequestID(c))
		resp.Data = result
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	h.Committed(c, result, result.Degraded, false)
}

func openUploads(headers []*multipart.FileHeader) ([]fulfillment.UploadSource, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	sources := make([]fulfillment.UploadSource, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("cannot read %s", fh.Filename)
		}
		files = append(files, f)
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		sources = append(sources, fulfillment.UploadSource{
			FileName:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        f,
		})
	}
	return sources, closeAll, nil
}

// Download handles GET /orders/:id/deliverables/archive and streams a zip
func (h *OrderHandler) Download(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	w := &archiveWriter{c: c, fileName: "order-" + orderID.String() + ".zip"}
	err := h.workflow.DownloadDeliverables(c.Request.Context(), partnerID, orderID, actor, w)
	if err == nil {
		w.start()
		return
	}
	if !w.started {
		h.HandleError(c, err)
		return
	}
	// Headers are gone, all that is left is to cut the stream
	logger.L(c.Request.Context()).Error("deliverable archive interrupted", zap.Error(err))
	_ = c.Error(err)
	c.Abort()
}

// archiveWriter sends the archive headers with the first byte so errors
// found before streaming still get a JSON answer
type archiveWriter struct {
	c        *gin.Context
	fileName string
	started  bool
}

func (w *archiveWriter) start() {
	if w.started {
		return
	}
	w.started = true
	w.c.Header("Content-Type", "application/zip")
	w.c.Header("Content-Disposition", `attachment; filename="`+w.fileName+`"`)
	w.c.Status(http.StatusOK)
	w.c.Writer.WriteHeaderNow()
}

func (w *archiveWriter) Write(p []byte) (int, error) {
	w.start()
	return w.c.Writer.Write(p)
}

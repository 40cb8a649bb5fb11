package handler

import (
	"context"

	"github.com/editdesk/backend/internal/application/event"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OutboxAdmin is the operator view of the event outbox
type OutboxAdmin interface {
	DeadLetters(ctx context.Context, filter event.OutboxFilter) (*event.OutboxListResult, error)
	Entry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	Retry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	RetryAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*event.OutboxStatsDTO, error)
}

// OutboxHandler handles outbox management HTTP requests
type OutboxHandler struct {
	BaseHandler
	outbox OutboxAdmin
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(outbox OutboxAdmin) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// RetryAllResponse represents the response for retry all operation
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

// DeadLetters handles GET /system/outbox/dead
func (h *OutboxHandler) DeadLetters(c *gin.Context) {
	var filter event.OutboxFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	result, err := h.outbox.DeadLetters(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Entries, result.Total, result.Page, result.PageSize)
}

// Entry handles GET /system/outbox/:id
func (h *OutboxHandler) Entry(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	entry, err := h.outbox.Entry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Retry handles POST /system/outbox/:id/retry and puts a dead entry back in
// the queue
func (h *OutboxHandler) Retry(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	entry, err := h.outbox.Retry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAll handles POST /system/outbox/dead/retry-all
func (h *OutboxHandler) RetryAll(c *gin.Context) {
	count, err := h.outbox.RetryAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetryAllResponse{Count: count})
}

// Stats handles GET /system/outbox/stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

package handler

import (
	"context"

	activityapp "github.com/editdesk/backend/internal/application/activity"
	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActivityLog reads the activity of an order
type ActivityLog interface {
	ListForOrder(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, view activity.View) ([]activityapp.ActivityResponse, error)
}

// Inbox is the caller's notification inbox
type Inbox interface {
	List(ctx context.Context, actor shared.Actor, filter activityapp.NotificationListFilter) ([]activity.Notification, int64, error)
	MarkRead(ctx context.Context, actor shared.Actor, id uuid.UUID) error
	MarkAllRead(ctx context.Context, actor shared.Actor) (int64, error)
	Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error
}

// ActivityHandler serves order activity and notifications
type ActivityHandler struct {
	BaseHandler
	activity ActivityLog
	inbox    Inbox
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(log ActivityLog, inbox Inbox) *ActivityHandler {
	return &ActivityHandler{activity: log, inbox: inbox}
}

// MarkAllReadResponse reports how many notifications were marked
type MarkAllReadResponse struct {
	Count int64 `json:"count"`
}

// OrderActivity handles GET /orders/:id/activity?view=user|audit
func (h *ActivityHandler) OrderActivity(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	view := activity.View(c.DefaultQuery("view", string(activity.ViewUserFacing)))
	if view != activity.ViewUserFacing && view != activity.ViewAudit {
		h.BadRequest(c, "view must be one of: user audit")
		return
	}

	records, err := h.activity.ListForOrder(c.Request.Context(), partnerID, orderID, actor, view)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// ListNotifications handles GET /notifications
func (h *ActivityHandler) ListNotifications(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var filter activityapp.NotificationListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	notifications, total, err := h.inbox.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, notifications, total, page, pageSize)
}

// MarkRead handles POST /notifications/:id/read
func (h *ActivityHandler) MarkRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// MarkAllRead handles POST /notifications/read-all
func (h *ActivityHandler) MarkAllRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	count, err := h.inbox.MarkAllRead(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MarkAllReadResponse{Count: count})
}

// DeleteNotification handles DELETE /notifications/:id
func (h *ActivityHandler) DeleteNotification(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.inbox.Delete(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

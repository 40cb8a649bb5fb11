package activity

import (
	"context"
	"time"

	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ==================== DTOs ====================

// ActivityResponse is one entry of an order's activity log
type ActivityResponse struct {
	ID          uuid.UUID `json:"id"`
	Sequence    int64     `json:"sequence"`
	ActorID     uuid.UUID `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	Action      string    `json:"action"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationListFilter narrows an inbox listing
type NotificationListFilter struct {
	UnreadOnly bool `form:"unread"`
	Page       int  `form:"page" binding:"omitempty,min=1"`
	PageSize   int  `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToActivityResponses converts records for display
func ToActivityResponses(records []activity.Record) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(records))
	for _, r := range records {
		resp := ActivityResponse{
			ID:          r.ID,
			Sequence:    r.Sequence,
			ActorID:     r.ActorID,
			ActorRole:   string(r.ActorRole),
			Action:      r.Action,
			Category:    string(r.Category),
			Title:       r.Title,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
		}
		if len(r.Metadata) > 0 {
			resp.Metadata = r.Metadata
		}
		out = append(out, resp)
	}
	return out
}

// ==================== Activity ====================

// ActivityService reads order activity logs
type ActivityService struct {
	records activity.RecordRepository
	orders  fulfillment.OrderRepository
}

// NewActivityService creates a new ActivityService
func NewActivityService(records activity.RecordRepository, orders fulfillment.OrderRepository) *ActivityService {
	return &ActivityService{records: records, orders: orders}
}

// ListForOrder returns the order's history in sequence order. The user view drops audit-only records; the audit view is
// reserved for partner admins.
func (s *ActivityService) ListForOrder(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, view activity.View) ([]ActivityResponse, error) {
	if view == "" {
		view = activity.ViewUserFacing
	}
	if view != activity.ViewUserFacing && view != activity.ViewAudit {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid activity view %q", view)
	}
	if view == activity.ViewAudit && actor.Role != shared.ActorRolePartnerAdmin {
		return nil, shared.ErrForbiddenActor.WithDetail("view", string(view))
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(order, partnerID, actor) {
		return nil, shared.ErrNotFound.WithDetail("order_id", orderID.String())
	}

	records, err := s.records.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	activity.SortRecords(records)
	if view == activity.ViewUserFacing {
		records = activity.FilterUserFacing(records)
	}
	return ToActivityResponses(records), nil
}

func canView(order *fulfillment.Order, partnerID uuid.UUID, actor shared.Actor) bool {
	if order.PartnerID != partnerID {
		return false
	}
	switch actor.Role {
	case shared.ActorRoleCustomer:
		return order.CustomerID == actor.ID
	case shared.ActorRoleEditor:
		return order.EditorID != nil && *order.EditorID == actor.ID
	}
	return true
}

// ==================== Notifications ====================

// NotificationService manages a recipient's inbox. None of its operations
// touch the activity log.
type NotificationService struct {
	notifications activity.NotificationRepository
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications activity.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns a page of the actor's notifications, newest first
func (s *NotificationService) List(ctx context.Context, actor shared.Actor, filter NotificationListFilter) ([]activity.Notification, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	items, total, err := s.notifications.ListForRecipient(ctx, actor.ID, activity.NotificationFilter{
		UnreadOnly: filter.UnreadOnly,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []activity.Notification{}
	}
	return items, total, nil
}

// MarkRead marks one of the actor's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	return s.notifications.MarkRead(ctx, actor.ID, id)
}

// MarkAllRead marks every unread notification of the actor as read
func (s *NotificationService) MarkAllRead(ctx context.Context, actor shared.Actor) (int64, error) {
	return s.notifications.MarkAllRead(ctx, actor.ID)
}

// Delete removes one of the actor's notifications
func (s *NotificationService) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	return s.notifications.Delete(ctx, actor.ID, id)
}

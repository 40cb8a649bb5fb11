package fulfillment

import (
	"time"

	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/google/uuid"
)

// ==================== Order DTOs ====================

// PlaceOrderRequest places a job with the partner. The service selection
// seeds the order's billing ledger.
type PlaceOrderRequest struct {
	JobID       uuid.UUID  `json:"job_id" binding:"required"`
	CustomerID  uuid.UUID  `json:"customer_id" binding:"required"`
	EditorID    *uuid.UUID `json:"editor_id"`
	Title       string     `json:"title" binding:"required,min=1,max=200"`
	DueDate     *time.Time `json:"due_date"`
	ProductID   uuid.UUID  `json:"product_id" binding:"required"`
	VariationID *uuid.UUID `json:"variation_id"`
	Quantity    int        `json:"quantity" binding:"omitempty,min=1"`
}

// AcceptOrderRequest is sent by the editor taking the order
type AcceptOrderRequest struct {
	EditorID *uuid.UUID `json:"editor_id"` // defaults to the caller
}

// DeclineOrderRequest cancels the order
type DeclineOrderRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// RequestRevisionRequest sends the work back to the editor
type RequestRevisionRequest struct {
	Notes string `json:"notes" binding:"max=4000"`
}

// SetVisibilityRequest shows or hides a deliverable
type SetVisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// OrderListFilter narrows order listings
type OrderListFilter struct {
	Statuses   []string   `form:"status"`
	CustomerID *uuid.UUID `form:"customer_id"`
	EditorID   *uuid.UUID `form:"editor_id"`
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// DeliverableResponse is a delivered file
type DeliverableResponse struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Round       int       `json:"round"`
	Visible     bool      `json:"visible"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// OrderResponse is the full view of an order
type OrderResponse struct {
	ID            uuid.UUID             `json:"id"`
	PartnerID     uuid.UUID             `json:"partner_id"`
	JobID         uuid.UUID             `json:"job_id"`
	Title         string                `json:"title"`
	CustomerID    uuid.UUID             `json:"customer_id"`
	EditorID      *uuid.UUID            `json:"editor_id,omitempty"`
	Status        string                `json:"status"`
	RevisionCount int                   `json:"revision_count"`
	DueDate       *time.Time            `json:"due_date,omitempty"`
	DeclineReason *string               `json:"decline_reason,omitempty"`
	RevisionNotes *string               `json:"revision_notes,omitempty"`
	Deliverables  []DeliverableResponse `json:"deliverables"`
	AcceptedAt    *time.Time            `json:"accepted_at,omitempty"`
	SubmittedAt   *time.Time            `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	CancelledAt   *time.Time            `json:"cancelled_at,omitempty"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// OrderListItemResponse is the list view of an order
type OrderListItemResponse struct {
	ID            uuid.UUID  `json:"id"`
	JobID         uuid.UUID  `json:"job_id"`
	Title         string     `json:"title"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	EditorID      *uuid.UUID `json:"editor_id,omitempty"`
	Status        string     `json:"status"`
	RevisionCount int        `json:"revision_count"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TransitionResult is returned by every lifecycle command
type TransitionResult struct {
	Order OrderResponse `json:"order"`
	// Degraded reports that realtime delivery of the resulting activity is
	// delayed; the change itself is committed
	Degraded bool `json:"degraded"`
}

// UploadItemResponse is the final state of one file in an upload batch
type UploadItemResponse struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	State       string    `json:"state"`
	Size        int64     `json:"size"`
	Transferred int64     `json:"transferred"`
	Error       string    `json:"error,omitempty"`
}

// UploadResult is returned by an upload batch. Order is nil when no file
// made it to the blob store.
type UploadResult struct {
	Order    *OrderResponse       `json:"order,omitempty"`
	Items    []UploadItemResponse `json:"items"`
	Degraded bool                 `json:"degraded"`
}

// ==================== Converters ====================

// ToOrderResponse converts an order to its full view. Hidden deliverables are
// left out when visibleOnly is set.
func ToOrderResponse(o *fulfillment.Order, visibleOnly bool) OrderResponse {
	deliverables := o.Deliverables
	if visibleOnly {
		deliverables = o.VisibleDeliverables()
	}
	items := make([]DeliverableResponse, 0, len(deliverables))
	for i := range deliverables {
		items = append(items, ToDeliverableResponse(&deliverables[i]))
	}
	return OrderResponse{
		ID:            o.ID,
		PartnerID:     o.PartnerID,
		JobID:         o.JobID,
		Title:         o.Title,
		CustomerID:    o.CustomerID,
		EditorID:      o.EditorID,
		Status:        string(o.Status),
		RevisionCount: o.RevisionCount,
		DueDate:       o.DueDate,
		DeclineReason: o.DeclineReason,
		RevisionNotes: o.RevisionNotes,
		Deliverables:  items,
		AcceptedAt:    o.AcceptedAt,
		SubmittedAt:   o.SubmittedAt,
		CompletedAt:   o.CompletedAt,
		CancelledAt:   o.CancelledAt,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// ToDeliverableResponse converts a deliverable
func ToDeliverableResponse(d *fulfillment.Deliverable) DeliverableResponse {
	return DeliverableResponse{
		ID:          d.ID,
		FileName:    d.FileName,
		Path:        d.Path,
		URL:         d.URL,
		Size:        d.Size,
		ContentType: d.ContentType,
		Round:       d.Round,
		Visible:     d.Visible,
		UploadedBy:  d.UploadedBy,
		UploadedAt:  d.UploadedAt,
	}
}

// ToOrderListItemResponses converts a page of orders
func ToOrderListItemResponses(orders []fulfillment.Order) []OrderListItemResponse {
	out := make([]OrderListItemResponse, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		out = append(out, OrderListItemResponse{
			ID:            o.ID,
			JobID:         o.JobID,
			Title:         o.Title,
			CustomerID:    o.CustomerID,
			EditorID:      o.EditorID,
			Status:        string(o.Status),
			RevisionCount: o.RevisionCount,
			DueDate:       o.DueDate,
			CreatedAt:     o.CreatedAt,
			UpdatedAt:     o.UpdatedAt,
		})
	}
	return out
}

// ToUploadItemResponses converts the items of a finished batch
func ToUploadItemResponses(items []fulfillment.UploadItem) []UploadItemResponse {
	out := make([]UploadItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, UploadItemResponse{
			ID:          item.ID,
			FileName:    item.FileName,
			State:       string(item.State),
			Size:        item.Size,
			Transferred: item.Transferred,
			Error:       item.Error,
		})
	}
	return out
}

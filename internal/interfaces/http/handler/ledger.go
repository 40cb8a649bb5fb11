package handler

import (
	"context"

	billingapp "github.com/editdesk/backend/internal/application/billing"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Ledger is the billing ledger of an order
type Ledger interface {
	Get(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResponse, error)
	AddLineItem(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req billingapp.AddLineItemRequest) (*billingapp.LedgerResult, error)
	UpdateQuantity(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor, quantity int) (*billingapp.LedgerResult, error)
	CommitPrice(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor, raw string) (*billingapp.LedgerResult, error)
	RemoveLineItem(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error)
	SyncInvoiceStatus(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, status string) (*billingapp.LedgerResult, error)
	RaiseInvoice(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error)
}

// LedgerHandler serves the line items and invoice of an order
type LedgerHandler struct {
	BaseHandler
	ledger Ledger
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Get handles GET /orders/:id/ledger
func (h *LedgerHandler) Get(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	ledger, err := h.ledger.Get(c.Request.Context(), partnerID, orderID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledger)
}

// AddItem handles POST /orders/:id/ledger/items
func (h *LedgerHandler) AddItem(c *gin.Context) {
	var req billingapp.AddLineItemRequest
	h.command(c, &req, false, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
		return h.ledger.AddLineItem(ctx, partnerID, orderID, actor, req)
	})
}

// UpdateQuantity handles PATCH /orders/:id/ledger/items/:itemId/quantity
func (h *LedgerHandler) UpdateQuantity(c *gin.Context) {
	itemID, ok := h.pathID(c, "itemId")
	if !ok {
		return
	}
	var req billingapp.UpdateQuantityRequest
	h.command(c, &req, false, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
		return h.ledger.UpdateQuantity(ctx, partnerID, orderID, itemID, actor, req.Quantity)
	})
}

// UpdatePrice handles PATCH /orders/:id/ledger/items/:itemId/price. The price
// arrives as typed text and is committed when it parses.
func (h *LedgerHandler) UpdatePrice(c *gin.Context) {
	itemID, ok := h.pathID(c, "itemId")
	if !ok {
		return
	}
	var req billingapp.UpdatePriceRequest
	h.command(c, &req, false, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
		return h.ledger.CommitPrice(ctx, partnerID, orderID, itemID, actor, req.Price)
	})
}

// RemoveItem handles DELETE /orders/:id/ledger/items/:itemId
func (h *LedgerHandler) RemoveItem(c *gin.Context) {
	itemID, ok := h.pathID(c, "itemId")
	if !ok {
		return
	}
	h.command(c, nil, false, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
		return h.ledger.RemoveLineItem(ctx, partnerID, orderID, itemID, actor)
	})
}

// RaiseInvoice handles POST /orders/:id/invoice
func (h *LedgerHandler) RaiseInvoice(c *gin.Context) {
	h.command(c, nil, true, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
		return h.ledger.RaiseInvoice(ctx, partnerID, orderID, actor)
	})
}

// SyncInvoiceStatus handles PUT /orders/:id/invoice/status
func (h *LedgerHandler) SyncInvoiceStatus(c *gin.Context) {
	var req billingapp.SyncInvoiceStatusRequest
	h.command(c, &req, false, func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
		return h.ledger.SyncInvoiceStatus(ctx, partnerID, orderID, actor, req.Status)
	})
}

func (h *LedgerHandler) command(c *gin.Context, body any, created bool, run func(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error)) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	if body != nil && !h.bindJSON(c, body) {
		return
	}

	result, err := run(c.Request.Context(), partnerID, orderID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Committed(c, result, result.Degraded, created)
}

package handler

import (
	"context"

	accountingapp "github.com/editdesk/backend/internal/application/accounting"
	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Mappings administers contact and product mappings
type Mappings interface {
	List(ctx context.Context, partnerID uuid.UUID, actor shared.Actor) (*accountingapp.MappingsResponse, error)
	SetContact(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor, req accountingapp.SetContactMappingRequest) (*accountingapp.ContactMappingResponse, error)
	SetProduct(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor, req accountingapp.SetProductMappingRequest) (*accountingapp.ProductMappingResponse, error)
	DeleteContact(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor) error
	DeleteProduct(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor) error
	Status(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*accountingapp.MappingStatusResponse, error)
	Validate(ctx context.Context, partnerID uuid.UUID, actor shared.Actor) ([]accounting.StaleMapping, error)
}

// MappingHandler serves the accounting mapping admin
type MappingHandler struct {
	BaseHandler
	mappings Mappings
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(mappings Mappings) *MappingHandler {
	return &MappingHandler{mappings: mappings}
}

// ValidationReport lists mappings the ledger no longer knows
type ValidationReport struct {
	Valid bool                      `json:"valid"`
	Stale []accounting.StaleMapping `json:"stale"`
}

// List handles GET /accounting/mappings
func (h *MappingHandler) List(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	mappings, err := h.mappings.List(c.Request.Context(), partnerID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mappings)
}

// SetContact handles PUT /accounting/mappings/contacts/:customerId
func (h *MappingHandler) SetContact(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	customerID, ok := h.pathID(c, "customerId")
	if !ok {
		return
	}
	var req accountingapp.SetContactMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	mapping, err := h.mappings.SetContact(c.Request.Context(), partnerID, customerID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mapping)
}

// DeleteContact handles DELETE /accounting/mappings/contacts/:customerId
func (h *MappingHandler) DeleteContact(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	customerID, ok := h.pathID(c, "customerId")
	if !ok {
		return
	}
	if err := h.mappings.DeleteContact(c.Request.Context(), partnerID, customerID, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// SetProduct handles PUT /accounting/mappings/products/:productId
func (h *MappingHandler) SetProduct(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	var req accountingapp.SetProductMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	mapping, err := h.mappings.SetProduct(c.Request.Context(), partnerID, productID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mapping)
}

// DeleteProduct handles DELETE /accounting/mappings/products/:productId
func (h *MappingHandler) DeleteProduct(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	if err := h.mappings.DeleteProduct(c.Request.Context(), partnerID, productID, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Validate handles POST /accounting/mappings/validate
func (h *MappingHandler) Validate(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	stale, err := h.mappings.Validate(c.Request.Context(), partnerID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if stale == nil {
		stale = []accounting.StaleMapping{}
	}
	h.Success(c, ValidationReport{Valid: len(stale) == 0, Stale: stale})
}

// Status handles GET /orders/:id/mapping-status
func (h *MappingHandler) Status(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	status, err := h.mappings.Status(c.Request.Context(), partnerID, orderID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

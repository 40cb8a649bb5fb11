package handler

import (
	"context"

	partnerapp "github.com/editdesk/backend/internal/application/partner"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PartnerSettings reads and changes the partner configuration
type PartnerSettings interface {
	Get(ctx context.Context, partnerID uuid.UUID, actor shared.Actor) (*partnerapp.SettingsResponse, error)
	Update(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, req partnerapp.UpdateSettingsRequest) (*partnerapp.SettingsResponse, error)
}

// RevisionPolicies manages per customer revision overrides
type RevisionPolicies interface {
	Get(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor) (*partnerapp.RevisionPolicyResponse, error)
	Set(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor, req partnerapp.SetRevisionPolicyRequest) (*partnerapp.RevisionPolicyResponse, error)
	Delete(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor) error
}

// Catalog manages the partner's products
type Catalog interface {
	Create(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, req partnerapp.CreateProductRequest) (*partnerapp.ProductResponse, error)
	Update(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor, req partnerapp.UpdateProductRequest) (*partnerapp.ProductResponse, error)
	AddVariation(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor, req partnerapp.AddVariationRequest) (*partnerapp.ProductResponse, error)
	Get(ctx context.Context, partnerID, productID uuid.UUID) (*partnerapp.ProductResponse, error)
	List(ctx context.Context, partnerID uuid.UUID, filter partnerapp.ProductListFilter) ([]partnerapp.ProductResponse, error)
}

// PartnerHandler serves partner configuration and the catalog
type PartnerHandler struct {
	BaseHandler
	settings PartnerSettings
	policies RevisionPolicies
	catalog  Catalog
}

// NewPartnerHandler creates a new PartnerHandler
func NewPartnerHandler(settings PartnerSettings, policies RevisionPolicies, catalog Catalog) *PartnerHandler {
	return &PartnerHandler{
		settings: settings,
		policies: policies,
		catalog:  catalog,
	}
}

// GetSettings handles GET /partner/settings
func (h *PartnerHandler) GetSettings(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	settings, err := h.settings.Get(c.Request.Context(), partnerID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// UpdateSettings handles PUT /partner/settings
func (h *PartnerHandler) UpdateSettings(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	var req partnerapp.UpdateSettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	settings, err := h.settings.Update(c.Request.Context(), partnerID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// GetRevisionPolicy handles GET /partner/customers/:customerId/revision-policy
func (h *PartnerHandler) GetRevisionPolicy(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	customerID, ok := h.pathID(c, "customerId")
	if !ok {
		return
	}
	policy, err := h.policies.Get(c.Request.Context(), partnerID, customerID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, policy)
}

// SetRevisionPolicy handles PUT /partner/customers/:customerId/revision-policy
func (h *PartnerHandler) SetRevisionPolicy(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	customerID, ok := h.pathID(c, "customerId")
	if !ok {
		return
	}
	var req partnerapp.SetRevisionPolicyRequest
	if !h.bindJSON(c, &req) {
		return
	}
	policy, err := h.policies.Set(c.Request.Context(), partnerID, customerID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, policy)
}

// DeleteRevisionPolicy handles DELETE /partner/customers/:customerId/revision-policy
func (h *PartnerHandler) DeleteRevisionPolicy(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	customerID, ok := h.pathID(c, "customerId")
	if !ok {
		return
	}
	if err := h.policies.Delete(c.Request.Context(), partnerID, customerID, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CreateProduct handles POST /catalog/products
func (h *PartnerHandler) CreateProduct(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	var req partnerapp.CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	product, err := h.catalog.Create(c.Request.Context(), partnerID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// ListProducts handles GET /catalog/products
func (h *PartnerHandler) ListProducts(c *gin.Context) {
	partnerID, _, ok := h.caller(c)
	if !ok {
		return
	}
	var filter partnerapp.ProductListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	products, err := h.catalog.List(c.Request.Context(), partnerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, products)
}

// GetProduct handles GET /catalog/products/:productId
func (h *PartnerHandler) GetProduct(c *gin.Context) {
	partnerID, _, ok := h.caller(c)
	if !ok {
		return
	}
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	product, err := h.catalog.Get(c.Request.Context(), partnerID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// UpdateProduct handles PUT /catalog/products/:productId
func (h *PartnerHandler) UpdateProduct(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	var req partnerapp.UpdateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	product, err := h.catalog.Update(c.Request.Context(), partnerID, productID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// AddVariation handles POST /catalog/products/:productId/variations
func (h *PartnerHandler) AddVariation(c *gin.Context) {
	partnerID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	var req partnerapp.AddVariationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	product, err := h.catalog.AddVariation(c.Request.Context(), partnerID, productID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

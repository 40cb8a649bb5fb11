package partner

import (
	"time"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Settings DTOs
// =============================================================================

// UpdateSettingsRequest changes the partner configuration. Nil fields keep
// their effective value.
type UpdateSettingsRequest struct {
	DefaultRevisionLimit *int    `json:"default_revision_limit" binding:"omitempty,min=0"`
	InvoiceTrigger       *string `json:"invoice_trigger" binding:"omitempty,oneof=never on_delivered manual_only"`
	InvoiceStatus        *string `json:"invoice_status" binding:"omitempty,oneof=draft authorised"`
	Currency             *string `json:"currency" binding:"omitempty,iso4217"`
}

// SettingsResponse is the effective partner configuration
type SettingsResponse struct {
	PartnerID            uuid.UUID `json:"partner_id"`
	DefaultRevisionLimit int       `json:"default_revision_limit"`
	InvoiceTrigger       string    `json:"invoice_trigger"`
	InvoiceStatus        string    `json:"invoice_status"`
	Currency             string    `json:"currency"`
}

// ToSettingsResponse converts settings to a response
func ToSettingsResponse(s partner.Settings) SettingsResponse {
	return SettingsResponse{
		PartnerID:            s.PartnerID,
		DefaultRevisionLimit: s.DefaultRevisionLimit,
		InvoiceTrigger:       string(s.InvoiceTrigger),
		InvoiceStatus:        string(s.InvoiceStatus),
		Currency:             string(s.Currency),
	}
}

// =============================================================================
// Revision policy DTOs
// =============================================================================

// SetRevisionPolicyRequest sets a customer's override: "default",
// "unlimited" or a non-negative number of rounds
type SetRevisionPolicyRequest struct {
	Policy string `json:"policy" binding:"required,revision_policy"`
}

// RevisionPolicyResponse shows the stored override and what it resolves to
// under the current partner default
type RevisionPolicyResponse struct {
	CustomerID     uuid.UUID      `json:"customer_id"`
	Policy         string         `json:"policy"`
	EffectiveLimit revision.Limit `json:"effective_limit"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

// =============================================================================
// Catalog DTOs
// =============================================================================

// CreateProductRequest adds a product to the partner catalog
type CreateProductRequest struct {
	Name      string          `json:"name" binding:"required,min=1,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"gte=0"`
	TaxRate   decimal.Decimal `json:"tax_rate" binding:"gte=0"`
}

// UpdateProductRequest changes a product. Nil fields are left alone.
type UpdateProductRequest struct {
	Name      *string          `json:"name" binding:"omitempty,min=1,max=200"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	TaxRate   *decimal.Decimal `json:"tax_rate"`
	Active    *bool            `json:"active"`
}

// AddVariationRequest adds a priced option to a product
type AddVariationRequest struct {
	Name      string           `json:"name" binding:"required,min=1,max=200"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// ProductListFilter filters the catalog listing
type ProductListFilter struct {
	ActiveOnly bool `form:"active_only"`
}

// VariationResponse is a product variation
type VariationResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// ProductResponse is a catalog product
type ProductResponse struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	UnitPrice  decimal.Decimal     `json:"unit_price"`
	TaxRate    decimal.Decimal     `json:"tax_rate"`
	Active     bool                `json:"active"`
	Variations []VariationResponse `json:"variations"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// ToProductResponse converts a product to a response
func ToProductResponse(p *billing.Product) ProductResponse {
	variations := make([]VariationResponse, 0, len(p.Variations))
	for _, v := range p.Variations {
		variations = append(variations, VariationResponse{ID: v.ID, Name: v.Name, UnitPrice: v.UnitPrice})
	}
	return ProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		UnitPrice:  p.UnitPrice,
		TaxRate:    p.TaxRate,
		Active:     p.Active,
		Variations: variations,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

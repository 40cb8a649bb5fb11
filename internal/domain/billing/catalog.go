package billing

import (
	"context"
	"strings"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a service the partner sells, e.g. "Photo retouch"
type Product struct {
	ID         uuid.UUID
	PartnerID  uuid.UUID
	Name       string
	UnitPrice  decimal.Decimal
	TaxRate    decimal.Decimal
	Active     bool
	Variations []Variation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Variation is a priced option of a product, e.g. "Express"
type Variation struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	// UnitPrice replaces the product price when set
	UnitPrice *decimal.Decimal
}

// NewProduct validates and creates an active product
func NewProduct(partnerID uuid.UUID, name string, unitPrice, taxRate decimal.Decimal) (*Product, error) {
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "partner id cannot be empty")
	}
	p := &Product{
		ID:        uuid.New(),
		PartnerID: partnerID,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := p.Update(name, unitPrice, taxRate); err != nil {
		return nil, err
	}
	return p, nil
}

// Update changes name, price and tax rate. Existing line items keep the
// values they were added with.
func (p *Product) Update(name string, unitPrice, taxRate decimal.Decimal) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "product name cannot be empty")
	}
	if unitPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "unit price cannot be negative")
	}
	if taxRate.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "tax rate cannot be negative")
	}
	p.Name = name
	p.UnitPrice = unitPrice
	p.TaxRate = taxRate
	p.UpdatedAt = time.Now()
	return nil
}

// AddVariation appends a variation
func (p *Product) AddVariation(name string, unitPrice *decimal.Decimal) (*Variation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "variation name cannot be empty")
	}
	if unitPrice != nil && unitPrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "unit price cannot be negative")
	}
	v := Variation{ID: uuid.New(), ProductID: p.ID, Name: name, UnitPrice: unitPrice}
	p.Variations = append(p.Variations, v)
	p.UpdatedAt = time.Now()
	return &p.Variations[len(p.Variations)-1], nil
}

// Entry prices a selection of this product as of now. The variation name is
// appended to the product name.
func (p *Product) Entry(variationID *uuid.UUID) (*CatalogEntry, error) {
	if !p.Active {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "product is not available").
			WithDetail("product_id", p.ID.String())
	}
	entry := &CatalogEntry{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		TaxRate:   p.TaxRate,
	}
	if variationID == nil {
		return entry, nil
	}
	for _, v := range p.Variations {
		if v.ID != *variationID {
			continue
		}
		id := v.ID
		entry.VariationID = &id
		entry.Name = p.Name + " - " + v.Name
		if v.UnitPrice != nil {
			entry.UnitPrice = *v.UnitPrice
		}
		return entry, nil
	}
	return nil, shared.ErrNotFound.WithDetail("variation_id", variationID.String())
}

// ProductRepository stores partner catalogs
type ProductRepository interface {
	FindByID(ctx context.Context, partnerID, id uuid.UUID) (*Product, error)
	ListForPartner(ctx context.Context, partnerID uuid.UUID, activeOnly bool) ([]Product, error)
	Save(ctx context.Context, product *Product) error
}

// ProductCatalog is the Catalog backed by stored products
type ProductCatalog struct {
	products ProductRepository
}

// NewProductCatalog creates a Catalog over products
func NewProductCatalog(products ProductRepository) *ProductCatalog {
	return &ProductCatalog{products: products}
}

// Resolve implements Catalog
func (c *ProductCatalog) Resolve(ctx context.Context, partnerID uuid.UUID, sel ProductSelection) (*CatalogEntry, error) {
	product, err := c.products.FindByID(ctx, partnerID, sel.ProductID)
	if err != nil {
		return nil, err
	}
	return product.Entry(sel.VariationID)
}

var _ Catalog = (*ProductCatalog)(nil)

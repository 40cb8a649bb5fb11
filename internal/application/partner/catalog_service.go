package partner

import (
	"context"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogService manages the products line items are priced from. Changes
// never touch line items already on a ledger.
type CatalogService struct {
	products billing.ProductRepository
	logger   *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(products billing.ProductRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{products: products, logger: logger}
}

// Create adds a product
func (s *CatalogService) Create(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, req CreateProductRequest) (*ProductResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	product, err := billing.NewProduct(partnerID, req.Name, req.UnitPrice, req.TaxRate)
	if err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("product created",
		zap.String("partner_id", partnerID.String()),
		zap.String("product_id", product.ID.String()),
	)
	resp := ToProductResponse(product)
	return &resp, nil
}

// Update changes a product
func (s *CatalogService) Update(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor, req UpdateProductRequest) (*ProductResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, partnerID, productID)
	if err != nil {
		return nil, err
	}

	name, price, rate := product.Name, product.UnitPrice, product.TaxRate
	if req.Name != nil {
		name = *req.Name
	}
	if req.UnitPrice != nil {
		price = *req.UnitPrice
	}
	if req.TaxRate != nil {
		rate = *req.TaxRate
	}
	if err := product.Update(name, price, rate); err != nil {
		return nil, err
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// AddVariation adds a priced option to a product
func (s *CatalogService) AddVariation(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor, req AddVariationRequest) (*ProductResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, partnerID, productID)
	if err != nil {
		return nil, err
	}
	if _, err := product.AddVariation(req.Name, req.UnitPrice); err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// Get returns one product. Any actor of the partner may read the catalog.
func (s *CatalogService) Get(ctx context.Context, partnerID, productID uuid.UUID) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, partnerID, productID)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// List returns the partner's catalog
func (s *CatalogService) List(ctx context.Context, partnerID uuid.UUID, filter ProductListFilter) ([]ProductResponse, error) {
	products, err := s.products.ListForPartner(ctx, partnerID, filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, ToProductResponse(&products[i]))
	}
	return out, nil
}

package persistence

import (
	"context"
	"errors"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements billing.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product of the partner's catalog
func (r *GormProductRepository) FindByID(ctx context.Context, partnerID, id uuid.UUID) (*billing.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		Preload("Variations").
		Where("partner_id = ? AND id = ?", partnerID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithDetail("product_id", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListForPartner lists the partner's catalog by name
func (r *GormProductRepository) ListForPartner(ctx context.Context, partnerID uuid.UUID, activeOnly bool) ([]billing.Product, error) {
	query := r.db.WithContext(ctx).Preload("Variations").Where("partner_id = ?", partnerID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.ProductModel
	if err := query.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make([]billing.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, nil
}

// Save upserts the product and replaces its variations
func (r *GormProductRepository) Save(ctx context.Context, product *billing.Product) error {
	model := models.ProductModelFromDomain(product)
	variations := model.Variations
	model.Variations = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "unit_price", "tax_rate", "active", "updated_at"}),
		}).Create(model).Error; err != nil {
			return err
		}

		keep := make([]uuid.UUID, len(variations))
		for i := range variations {
			keep[i] = variations[i].ID
		}
		remove := tx.Where("product_id = ?", product.ID)
		if len(keep) > 0 {
			remove = remove.Where("id NOT IN ?", keep)
		}
		if err := remove.Delete(&models.VariationModel{}).Error; err != nil {
			return err
		}
		if len(variations) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "unit_price"}),
		}).Create(&variations).Error
	})
}

var _ billing.ProductRepository = (*GormProductRepository)(nil)

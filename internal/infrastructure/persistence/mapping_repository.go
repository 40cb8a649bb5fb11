package persistence

import (
	"context"
	"errors"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMappingRepository implements accounting.MappingRepository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// FindContact returns nil, nil when the customer is unmapped
func (r *GormMappingRepository) FindContact(ctx context.Context, partnerID, customerID uuid.UUID) (*accounting.ContactMapping, error) {
	var model models.ContactMappingModel
	if err := r.db.WithContext(ctx).
		Where("partner_id = ? AND customer_id = ?", partnerID, customerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindProducts returns the mapped subset of productIDs
func (r *GormMappingRepository) FindProducts(ctx context.Context, partnerID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]*accounting.ProductMapping, error) {
	out := make(map[uuid.UUID]*accounting.ProductMapping, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("partner_id = ? AND product_id IN ?", partnerID, productIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ProductID] = rows[i].ToDomain()
	}
	return out, nil
}

// ListContacts lists the partner's contact mappings
func (r *GormMappingRepository) ListContacts(ctx context.Context, partnerID uuid.UUID) ([]*accounting.ContactMapping, error) {
	var rows []models.ContactMappingModel
	if err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.MapRows(rows, (*models.ContactMappingModel).ToDomain), nil
}

// ListProducts lists the partner's product mappings
func (r *GormMappingRepository) ListProducts(ctx context.Context, partnerID uuid.UUID) ([]*accounting.ProductMapping, error) {
	var rows []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.MapRows(rows, (*models.ProductMappingModel).ToDomain), nil
}

// SaveContact upserts a contact mapping
func (r *GormMappingRepository) SaveContact(ctx context.Context, m *accounting.ContactMapping) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(models.ContactMappingModelFromDomain(m)).Error
}

// SaveProduct upserts a product mapping
func (r *GormMappingRepository) SaveProduct(ctx context.Context, m *accounting.ProductMapping) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(models.ProductMappingModelFromDomain(m)).Error
}

// DeleteContact removes a contact mapping. Deleting a missing one is a no-op.
func (r *GormMappingRepository) DeleteContact(ctx context.Context, partnerID, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("partner_id = ? AND customer_id = ?", partnerID, customerID).
		Delete(&models.ContactMappingModel{}).Error
}

// DeleteProduct removes a product mapping. Deleting a missing one is a no-op.
func (r *GormMappingRepository) DeleteProduct(ctx context.Context, partnerID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("partner_id = ? AND product_id = ?", partnerID, productID).
		Delete(&models.ProductMappingModel{}).Error
}

var _ accounting.MappingRepository = (*GormMappingRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository implements billing.LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func preloadLineItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// FindByOrderID finds the ledger of an order
func (r *GormLedgerRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*billing.Ledger, error) {
	var model models.LedgerModel
	if err := r.db.WithContext(ctx).
		Preload("Items", preloadLineItems).
		First(&model, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithDetail("order_id", orderID.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderIDs loads several ledgers in one query
func (r *GormLedgerRepository) FindByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]*billing.Ledger, error) {
	out := make(map[uuid.UUID]*billing.Ledger, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []models.LedgerModel
	if err := r.db.WithContext(ctx).
		Preload("Items", preloadLineItems).
		Where("order_id IN ?", orderIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].OrderID] = rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a ledger with its line items
func (r *GormLedgerRepository) Create(ctx context.Context, ledger *billing.Ledger) error {
	if err := r.db.WithContext(ctx).Create(models.LedgerModelFromDomain(ledger)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithDetail("order_id", ledger.OrderID.String())
		}
		return err
	}
	return nil
}

// SaveWithLock replaces the ledger row and its line items if the stored
// version still matches
func (r *GormLedgerRepository) SaveWithLock(ctx context.Context, ledger *billing.Ledger) error {
	now := time.Now()
	model := models.LedgerModelFromDomain(ledger)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.LedgerModel{}).
			Where("id = ? AND version = ?", ledger.ID, ledger.Version).
			Updates(map[string]any{
				"currency":            model.Currency,
				"invoice_status":      model.InvoiceStatus,
				"invoice_external_id": model.InvoiceExternalID,
				"invoice_number":      model.InvoiceNumber,
				"invoice_raised_at":   model.InvoiceRaisedAt,
				"last_raise_error":    model.LastRaiseError,
				"version":             ledger.Version + 1,
				"updated_at":          now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.versionMiss(tx, ledger)
		}

		keep := make([]uuid.UUID, len(model.Items))
		for i := range model.Items {
			keep[i] = model.Items[i].ID
		}
		remove := tx.Where("ledger_id = ?", ledger.ID)
		if len(keep) > 0 {
			remove = remove.Where("id NOT IN ?", keep)
		}
		if err := remove.Delete(&models.LineItemModel{}).Error; err != nil {
			return err
		}
		if len(model.Items) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "unit_price", "tax_rate", "amount", "updated_at"}),
		}).Create(&model.Items).Error
	})
	if err != nil {
		return err
	}
	ledger.IncrementVersion()
	ledger.UpdatedAt = now
	return nil
}

func (r *GormLedgerRepository) versionMiss(tx *gorm.DB, ledger *billing.Ledger) error {
	var count int64
	if err := tx.Model(&models.LedgerModel{}).Where("id = ?", ledger.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound.WithDetail("order_id", ledger.OrderID.String())
	}
	return shared.ErrConflictingTransition.WithDetail("order_id", ledger.OrderID.String())
}

var _ billing.LedgerRepository = (*GormLedgerRepository)(nil)

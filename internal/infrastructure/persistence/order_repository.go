package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements fulfillment.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func preloadDeliverables(db *gorm.DB) *gorm.DB {
	return db.Order("uploaded_at ASC")
}

// FindByID finds an order with its deliverables
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Deliverables", preloadDeliverables).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithDetail("order_id", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForPartner lists a partner's orders, newest first unless the filter
// says otherwise. The total ignores pagination.
func (r *GormOrderRepository) FindForPartner(ctx context.Context, partnerID uuid.UUID, filter fulfillment.OrderFilter) ([]fulfillment.Order, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}).Scopes(OwnedBy(partnerID)), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Scopes(
		SortedBy(filter.OrderBy, filter.OrderDir, orderSortColumns, "created_at"),
		Paged(filter.Offset(), filter.PageSize),
	)

	var rows []models.OrderModel
	if err := query.Preload("Deliverables", preloadDeliverables).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	orders := make([]fulfillment.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, total, nil
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter fulfillment.OrderFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.EditorID != nil {
		query = query.Where("editor_id = ?", *filter.EditorID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	return query
}

// Create inserts a new order together with its deliverables
func (r *GormOrderRepository) Create(ctx context.Context, order *fulfillment.Order) error {
	model := models.OrderModelFromDomain(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists.WithDetail("job_id", order.JobID.String())
		}
		return err
	}
	return nil
}

// SaveWithLock writes the order if the stored version still matches and
// bumps the version. Deliverables are upserted. They are never removed, only
// hidden.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, order *fulfillment.Order) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(map[string]any{
				"title":          order.Title,
				"editor_id":      order.EditorID,
				"status":         order.Status,
				"revision_count": order.RevisionCount,
				"due_date":       order.DueDate,
				"decline_reason": order.DeclineReason,
				"revision_notes": order.RevisionNotes,
				"accepted_at":    order.AcceptedAt,
				"submitted_at":   order.SubmittedAt,
				"completed_at":   order.CompletedAt,
				"cancelled_at":   order.CancelledAt,
				"version":        order.Version + 1,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.versionMiss(tx, order.ID)
		}

		if len(order.Deliverables) == 0 {
			return nil
		}
		deliverables := make([]models.DeliverableModel, len(order.Deliverables))
		for i := range order.Deliverables {
			deliverables[i].FromDomain(&order.Deliverables[i])
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"url", "visible"}),
		}).Create(&deliverables).Error
	})
	if err != nil {
		return err
	}
	order.IncrementVersion()
	order.UpdatedAt = now
	return nil
}

// versionMiss tells a missing order apart from a concurrent modification
func (r *GormOrderRepository) versionMiss(tx *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound.WithDetail("order_id", id.String())
	}
	return shared.ErrConflictingTransition.WithDetail("order_id", id.String())
}

var _ fulfillment.OrderRepository = (*GormOrderRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormActivityRepository implements activity.RecordRepository using GORM.
// The unique (order_id, sequence) index makes Append idempotent.
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GormActivityRepository
func NewGormActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

// Append inserts the record or returns the one already stored for the same
// (order, sequence)
func (r *GormActivityRepository) Append(ctx context.Context, record *activity.Record) (*activity.Record, bool, error) {
	model := models.ActivityRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "sequence"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return record, true, nil
	}

	var existing models.ActivityRecordModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND sequence = ?", record.OrderID, record.Sequence).
		First(&existing).Error; err != nil {
		return nil, false, err
	}
	rec := existing.ToDomain()
	return &rec, false, nil
}

// ListByOrder returns the order's history in sequence order
func (r *GormActivityRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]activity.Record, error) {
	var rows []models.ActivityRecordModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]activity.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

// GormNotificationRepository implements activity.NotificationRepository
// using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Enqueue stores the notifications that do not exist yet and returns them
func (r *GormNotificationRepository) Enqueue(ctx context.Context, notifications []*activity.Notification) ([]*activity.Notification, error) {
	var stored []*activity.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored = stored[:0]
		for _, n := range notifications {
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "activity_id"}, {Name: "recipient_id"}},
				DoNothing: true,
			}).Create(models.NotificationModelFromDomain(n))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				stored = append(stored, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindByID finds a notification
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*activity.Notification, error) {
	var model models.NotificationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithDetail("notification_id", id.String())
		}
		return nil, err
	}
	n := model.ToDomain()
	return &n, nil
}

// ListForRecipient returns the recipient's inbox, newest first
func (r *GormNotificationRepository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, filter activity.NotificationFilter) ([]activity.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.NotificationModel{}).
		Where("recipient_id = ?", recipientID)
	if filter.UnreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	var rows []models.NotificationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return models.MapRows(rows, (*models.NotificationModel).ToDomain), total, nil
}

// MarkRead marks one of the recipient's notifications read. Marking an
// already read notification again keeps the first read time.
func (r *GormNotificationRepository) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.NotificationModel{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound.WithDetail("notification_id", id.String())
	}
	return r.db.WithContext(ctx).Model(&models.NotificationModel{}).
		Where("id = ? AND recipient_id = ? AND read = ?", id, recipientID, false).
		Updates(map[string]any{"read": true, "read_at": time.Now()}).Error
}

// MarkAllRead marks the recipient's unread notifications read and returns
// how many changed
func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.NotificationModel{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Updates(map[string]any{"read": true, "read_at": time.Now()})
	return result.RowsAffected, result.Error
}

// Delete removes one of the recipient's notifications
func (r *GormNotificationRepository) Delete(ctx context.Context, recipientID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.NotificationModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound.WithDetail("notification_id", id.String())
	}
	return nil
}

var (
	_ activity.RecordRepository       = (*GormActivityRepository)(nil)
	_ activity.NotificationRepository = (*GormNotificationRepository)(nil)
)

package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettingsRepository implements partner.SettingsRepository using GORM
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// FindByPartner returns nil, nil for a partner without stored settings
func (r *GormSettingsRepository) FindByPartner(ctx context.Context, partnerID uuid.UUID) (*partner.Settings, error) {
	var model models.PartnerSettingsModel
	if err := r.db.WithContext(ctx).First(&model, "partner_id = ?", partnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts the partner's settings
func (r *GormSettingsRepository) Save(ctx context.Context, settings *partner.Settings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(models.PartnerSettingsModelFromDomain(settings)).Error
}

// GormDirectory implements partner.Directory over the partner_members table
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GormDirectory
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// ListAdmins returns the users holding the partner admin role
func (d *GormDirectory) ListAdmins(ctx context.Context, partnerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := d.db.WithContext(ctx).
		Model(&models.PartnerMemberModel{}).
		Where("partner_id = ? AND role = ?", partnerID, shared.ActorRolePartnerAdmin).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AddMember records a user's role at a partner, replacing any earlier role
func (d *GormDirectory) AddMember(ctx context.Context, partnerID, userID uuid.UUID, role shared.ActorRole) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "partner_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).
		Create(&models.PartnerMemberModel{
			PartnerID: partnerID,
			UserID:    userID,
			Role:      role,
			CreatedAt: time.Now(),
		}).Error
}

// GormPolicyRepository implements revision.PolicyRepository using GORM
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// FindByCustomer returns nil, nil when the customer has no override
func (r *GormPolicyRepository) FindByCustomer(ctx context.Context, partnerID, customerID uuid.UUID) (*revision.CustomerPolicy, error) {
	var model models.RevisionPolicyModel
	err := r.db.WithContext(ctx).
		Scopes(OwnedBy(partnerID)).
		Where("customer_id = ?", customerID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save upserts the override of the (partner, customer) pair
func (r *GormPolicyRepository) Save(ctx context.Context, policy *revision.CustomerPolicy) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(models.RevisionPolicyModelFromDomain(policy)).Error
}

// Delete drops the override. Deleting a missing one is a no-op.
func (r *GormPolicyRepository) Delete(ctx context.Context, partnerID, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Scopes(OwnedBy(partnerID)).
		Where("customer_id = ?", customerID).
		Delete(&models.RevisionPolicyModel{}).Error
}

var (
	_ partner.SettingsRepository = (*GormSettingsRepository)(nil)
	_ partner.Directory          = (*GormDirectory)(nil)
	_ revision.PolicyRepository  = (*GormPolicyRepository)(nil)
)

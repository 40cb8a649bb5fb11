package models

import (
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel holds the identity and timestamp columns
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// PartnerAggregateModel holds the columns of a partner-scoped aggregate
// root. Version backs the optimistic compare-and-swap on save.
type PartnerAggregateModel struct {
	BaseModel
	PartnerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`
}

// FromDomainPartnerAggregateRoot populates the columns from the aggregate
func (m *PartnerAggregateModel) FromDomainPartnerAggregateRoot(a shared.PartnerAggregateRoot) {
	m.ID = a.ID
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
	m.PartnerID = a.PartnerID
	m.Version = a.Version
}

// PopulatePartnerAggregateRoot copies the columns onto the aggregate
func (m *PartnerAggregateModel) PopulatePartnerAggregateRoot(a *shared.PartnerAggregateRoot) {
	a.ID = m.ID
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	a.PartnerID = m.PartnerID
	a.Version = m.Version
}

// All returns every model, in dependency order, for AutoMigrate in tests
// and for the schema check of the migrate command
func All() []any {
	return []any{
		&OrderModel{},
		&DeliverableModel{},
		&OrderSequenceModel{},
		&LedgerModel{},
		&LineItemModel{},
		&ProductModel{},
		&VariationModel{},
		&ContactMappingModel{},
		&ProductMappingModel{},
		&PartnerSettingsModel{},
		&PartnerMemberModel{},
		&RevisionPolicyModel{},
		&ActivityRecordModel{},
		&NotificationModel{},
		&OutboxEntryModel{},
	}
}

// MapRows converts loaded rows with convert, keeping their order
func MapRows[M, D any](rows []M, convert func(*M) D) []D {
	out := make([]D, len(rows))
	for i := range rows {
		out[i] = convert(&rows[i])
	}
	return out
}

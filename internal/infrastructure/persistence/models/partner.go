package models

import (
	"time"

	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PartnerSettingsModel stores a partner's own settings. Partners without a
// row use the deployment defaults.
type PartnerSettingsModel struct {
	PartnerID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	DefaultRevisionLimit int       `gorm:"not null"`
	InvoiceTrigger       string    `gorm:"type:varchar(20);not null"`
	InvoiceStatus        string    `gorm:"type:varchar(20);not null"`
	Currency             string    `gorm:"type:varchar(3);not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PartnerSettingsModel) TableName() string {
	return "partner_settings"
}

// ToDomain converts the model to domain Settings
func (m *PartnerSettingsModel) ToDomain() *partner.Settings {
	return &partner.Settings{
		PartnerID:            m.PartnerID,
		DefaultRevisionLimit: m.DefaultRevisionLimit,
		InvoiceTrigger:       partner.InvoiceTrigger(m.InvoiceTrigger),
		InvoiceStatus:        partner.InvoiceStatusPreference(m.InvoiceStatus),
		Currency:             valueobject.Currency(m.Currency),
	}
}

// PartnerSettingsModelFromDomain creates a model from domain Settings
func PartnerSettingsModelFromDomain(s *partner.Settings) *PartnerSettingsModel {
	return &PartnerSettingsModel{
		PartnerID:            s.PartnerID,
		DefaultRevisionLimit: s.DefaultRevisionLimit,
		InvoiceTrigger:       string(s.InvoiceTrigger),
		InvoiceStatus:        string(s.InvoiceStatus),
		Currency:             string(s.Currency),
		UpdatedAt:            time.Now(),
	}
}

// PartnerMemberModel records a user's role at a partner. Notification
// audiences read the partner admins from here.
type PartnerMemberModel struct {
	PartnerID uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Role      shared.ActorRole `gorm:"type:varchar(20);not null;index"`
	CreatedAt time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PartnerMemberModel) TableName() string {
	return "partner_members"
}

// RevisionPolicyModel is a customer's revision override with one partner.
// Policy holds the rendered form: "unlimited" or a round count.
type RevisionPolicyModel struct {
	PartnerID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Policy     string    `gorm:"type:varchar(20);not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RevisionPolicyModel) TableName() string {
	return "customer_revision_policies"
}

// ToDomain converts the model to a domain CustomerPolicy
func (m *RevisionPolicyModel) ToDomain() (*revision.CustomerPolicy, error) {
	policy, err := revision.ParsePolicy(m.Policy)
	if err != nil {
		return nil, err
	}
	return &revision.CustomerPolicy{
		CustomerID: m.CustomerID,
		PartnerID:  m.PartnerID,
		Policy:     policy,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

// RevisionPolicyModelFromDomain creates a model from a domain CustomerPolicy
func RevisionPolicyModelFromDomain(p *revision.CustomerPolicy) *RevisionPolicyModel {
	return &RevisionPolicyModel{
		CustomerID: p.CustomerID,
		PartnerID:  p.PartnerID,
		Policy:     p.Policy.String(),
		UpdatedAt:  p.UpdatedAt,
	}
}

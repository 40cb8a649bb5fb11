package models

import (
	"time"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/google/uuid"
)

// ContactMappingModel links a customer to the ledger's contact
type ContactMappingModel struct {
	PartnerID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalContactID string    `gorm:"type:varchar(100);not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ContactMappingModel) TableName() string {
	return "accounting_contact_mappings"
}

// ToDomain converts the model to a domain ContactMapping
func (m *ContactMappingModel) ToDomain() *accounting.ContactMapping {
	return &accounting.ContactMapping{
		PartnerID:         m.PartnerID,
		CustomerID:        m.CustomerID,
		ExternalContactID: m.ExternalContactID,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ContactMappingModelFromDomain creates a model from a domain ContactMapping
func ContactMappingModelFromDomain(c *accounting.ContactMapping) *ContactMappingModel {
	return &ContactMappingModel{
		PartnerID:         c.PartnerID,
		CustomerID:        c.CustomerID,
		ExternalContactID: c.ExternalContactID,
		UpdatedAt:         c.UpdatedAt,
	}
}

// ProductMappingModel links a product to a revenue account and tax type
type ProductMappingModel struct {
	PartnerID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountCode string    `gorm:"type:varchar(50)"`
	TaxType     string    `gorm:"type:varchar(50)"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "accounting_product_mappings"
}

// ToDomain converts the model to a domain ProductMapping
func (m *ProductMappingModel) ToDomain() *accounting.ProductMapping {
	return &accounting.ProductMapping{
		PartnerID:   m.PartnerID,
		ProductID:   m.ProductID,
		AccountCode: m.AccountCode,
		TaxType:     m.TaxType,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ProductMappingModelFromDomain creates a model from a domain ProductMapping
func ProductMappingModelFromDomain(p *accounting.ProductMapping) *ProductMappingModel {
	return &ProductMappingModel{
		PartnerID:   p.PartnerID,
		ProductID:   p.ProductID,
		AccountCode: p.AccountCode,
		TaxType:     p.TaxType,
		UpdatedAt:   p.UpdatedAt,
	}
}

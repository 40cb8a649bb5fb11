package models

import (
	"time"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is a product of a partner's catalog
type ProductModel struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey"`
	PartnerID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	Name       string           `gorm:"type:varchar(200);not null"`
	UnitPrice  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	TaxRate    decimal.Decimal  `gorm:"type:decimal(7,4);not null"`
	Active     bool             `gorm:"not null;default:true;index"`
	CreatedAt  time.Time        `gorm:"not null"`
	UpdatedAt  time.Time        `gorm:"not null"`
	Variations []VariationModel `gorm:"foreignKey:ProductID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the model to a domain Product
func (m *ProductModel) ToDomain() *billing.Product {
	p := &billing.Product{
		ID:         m.ID,
		PartnerID:  m.PartnerID,
		Name:       m.Name,
		UnitPrice:  m.UnitPrice,
		TaxRate:    m.TaxRate,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Variations: make([]billing.Variation, len(m.Variations)),
	}
	for i, v := range m.Variations {
		p.Variations[i] = billing.Variation{
			ID:        v.ID,
			ProductID: v.ProductID,
			Name:      v.Name,
			UnitPrice: v.UnitPrice,
		}
	}
	return p
}

// ProductModelFromDomain creates a model from a domain Product
func ProductModelFromDomain(p *billing.Product) *ProductModel {
	m := &ProductModel{
		ID:         p.ID,
		PartnerID:  p.PartnerID,
		Name:       p.Name,
		UnitPrice:  p.UnitPrice,
		TaxRate:    p.TaxRate,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		Variations: make([]VariationModel, len(p.Variations)),
	}
	for i, v := range p.Variations {
		m.Variations[i] = VariationModel{
			ID:        v.ID,
			ProductID: p.ID,
			Name:      v.Name,
			UnitPrice: v.UnitPrice,
		}
	}
	return m
}

// VariationModel is a priced option of a product
type VariationModel struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Name      string           `gorm:"type:varchar(200);not null"`
	UnitPrice *decimal.Decimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (VariationModel) TableName() string {
	return "product_variations"
}

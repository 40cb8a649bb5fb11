package models

import (
	"time"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerModel is the persistence model of an order's billing ledger. The
// invoice projection is flattened onto the ledger row.
type LedgerModel struct {
	PartnerAggregateModel
	OrderID           uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex"`
	CustomerID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	Currency          string                `gorm:"type:varchar(3);not null"`
	InvoiceStatus     billing.InvoiceStatus `gorm:"type:varchar(20);not null"`
	InvoiceExternalID string                `gorm:"type:varchar(100);index"`
	InvoiceNumber     string                `gorm:"type:varchar(50)"`
	InvoiceRaisedAt   *time.Time
	LastRaiseError    string          `gorm:"type:text"`
	Items             []LineItemModel `gorm:"foreignKey:LedgerID"`
}

// TableName returns the table name for GORM
func (LedgerModel) TableName() string {
	return "ledgers"
}

// ToDomain converts the model to a domain Ledger
func (m *LedgerModel) ToDomain() *billing.Ledger {
	l := &billing.Ledger{
		OrderID:    m.OrderID,
		CustomerID: m.CustomerID,
		Currency:   valueobject.Currency(m.Currency),
		Items:      make([]billing.LineItem, len(m.Items)),
		Invoice: billing.Invoice{
			Status:         m.InvoiceStatus,
			ExternalID:     m.InvoiceExternalID,
			Number:         m.InvoiceNumber,
			RaisedAt:       m.InvoiceRaisedAt,
			LastRaiseError: m.LastRaiseError,
		},
	}
	m.PopulatePartnerAggregateRoot(&l.PartnerAggregateRoot)
	for i := range m.Items {
		l.Items[i] = m.Items[i].ToDomain()
	}
	return l
}

// FromDomain populates the model from a domain Ledger
func (m *LedgerModel) FromDomain(l *billing.Ledger) {
	m.FromDomainPartnerAggregateRoot(l.PartnerAggregateRoot)
	m.OrderID = l.OrderID
	m.CustomerID = l.CustomerID
	m.Currency = string(l.Currency)
	m.InvoiceStatus = l.Invoice.Status
	m.InvoiceExternalID = l.Invoice.ExternalID
	m.InvoiceNumber = l.Invoice.Number
	m.InvoiceRaisedAt = l.Invoice.RaisedAt
	m.LastRaiseError = l.Invoice.LastRaiseError
	m.Items = make([]LineItemModel, len(l.Items))
	for i := range l.Items {
		m.Items[i].FromDomain(&l.Items[i])
	}
}

// LedgerModelFromDomain creates a model from a domain Ledger
func LedgerModelFromDomain(l *billing.Ledger) *LedgerModel {
	m := &LedgerModel{}
	m.FromDomain(l)
	return m
}

// LineItemModel is one billed product on a ledger
type LineItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	LedgerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	VariationID *uuid.UUID      `gorm:"type:uuid"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LineItemModel) TableName() string {
	return "ledger_line_items"
}

// ToDomain converts the model to a domain LineItem
func (m *LineItemModel) ToDomain() billing.LineItem {
	return billing.LineItem{
		ID:          m.ID,
		LedgerID:    m.LedgerID,
		ProductID:   m.ProductID,
		VariationID: m.VariationID,
		Name:        m.Name,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		TaxRate:     m.TaxRate,
		Amount:      m.Amount,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain LineItem
func (m *LineItemModel) FromDomain(i *billing.LineItem) {
	m.ID = i.ID
	m.LedgerID = i.LedgerID
	m.ProductID = i.ProductID
	m.VariationID = i.VariationID
	m.Name = i.Name
	m.Quantity = i.Quantity
	m.UnitPrice = i.UnitPrice
	m.TaxRate = i.TaxRate
	m.Amount = i.Amount
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}

package billing

import (
	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeLedger = "Ledger"

// Event type constants
const (
	EventTypeLineItemAdded        = "LineItemAdded"
	EventTypeLineItemChanged      = "LineItemChanged"
	EventTypeLineItemRemoved      = "LineItemRemoved"
	EventTypeInvoiceRaised        = "InvoiceRaised"
	EventTypeInvoiceRaiseFailed   = "InvoiceRaiseFailed"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
)

// LineItemInfo is the line item snapshot carried by events
type LineItemInfo struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Amount    decimal.Decimal `json:"amount"`
}

func lineItemInfo(item *LineItem) LineItemInfo {
	return LineItemInfo{
		ItemID:    item.ID,
		ProductID: item.ProductID,
		Name:      item.Name,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		TaxRate:   item.TaxRate,
		Amount:    item.Amount,
	}
}

func newLedgerEvent(eventType string, l *Ledger, actor shared.Actor) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeLedger, l.ID, l.PartnerID, l.OrderID, actor)
}

// LineItemAddedEvent is raised when a product is added to the ledger
type LineItemAddedEvent struct {
	shared.BaseDomainEvent
	Item  LineItemInfo    `json:"item"`
	Total decimal.Decimal `json:"total"`
}

// NewLineItemAddedEvent creates a new LineItemAddedEvent
func NewLineItemAddedEvent(l *Ledger, item *LineItem, actor shared.Actor) *LineItemAddedEvent {
	return &LineItemAddedEvent{
		BaseDomainEvent: newLedgerEvent(EventTypeLineItemAdded, l, actor),
		Item:            lineItemInfo(item),
		Total:           l.Totals().Total.Amount(),
	}
}

// LineItemChangedEvent is raised when quantity or price changes
type LineItemChangedEvent struct {
	shared.BaseDomainEvent
	Item  LineItemInfo    `json:"item"`
	Field string          `json:"field"`
	Total decimal.Decimal `json:"total"`
}

// NewLineItemChangedEvent creates a new LineItemChangedEvent
func NewLineItemChangedEvent(l *Ledger, item *LineItem, field string, actor shared.Actor) *LineItemChangedEvent {
	return &LineItemChangedEvent{
		BaseDomainEvent: newLedgerEvent(EventTypeLineItemChanged, l, actor),
		Item:            lineItemInfo(item),
		Field:           field,
		Total:           l.Totals().Total.Amount(),
	}
}

// LineItemRemovedEvent is raised when an item is removed
type LineItemRemovedEvent struct {
	shared.BaseDomainEvent
	Item  LineItemInfo    `json:"item"`
	Total decimal.Decimal `json:"total"`
}

// NewLineItemRemovedEvent creates a new LineItemRemovedEvent
func NewLineItemRemovedEvent(l *Ledger, item *LineItem, actor shared.Actor) *LineItemRemovedEvent {
	return &LineItemRemovedEvent{
		BaseDomainEvent: newLedgerEvent(EventTypeLineItemRemoved, l, actor),
		Item:            lineItemInfo(item),
		Total:           l.Totals().Total.Amount(),
	}
}

// InvoiceRaisedEvent is raised when the external invoice is created
type InvoiceRaisedEvent struct {
	shared.BaseDomainEvent
	CustomerID    uuid.UUID       `json:"customer_id"`
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        InvoiceStatus   `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
}

// NewInvoiceRaisedEvent creates a new InvoiceRaisedEvent
func NewInvoiceRaisedEvent(l *Ledger, actor shared.Actor) *InvoiceRaisedEvent {
	return &InvoiceRaisedEvent{
		BaseDomainEvent: newLedgerEvent(EventTypeInvoiceRaised, l, actor),
		CustomerID:      l.CustomerID,
		InvoiceID:       l.Invoice.ExternalID,
		InvoiceNumber:   l.Invoice.Number,
		Status:          l.Invoice.Status,
		Total:           l.Totals().Total.Amount(),
		Currency:        string(l.Currency),
	}
}

// InvoiceRaiseFailedEvent is raised when an automatic raise could not complete
type InvoiceRaiseFailedEvent struct {
	shared.BaseDomainEvent
	Reason  string                    `json:"reason"`
	Missing []accounting.MissingEntry `json:"missing,omitempty"`
}

// NewInvoiceRaiseFailedEvent creates a new InvoiceRaiseFailedEvent
func NewInvoiceRaiseFailedEvent(l *Ledger, reason string, missing []accounting.MissingEntry, actor shared.Actor) *InvoiceRaiseFailedEvent {
	return &InvoiceRaiseFailedEvent{
		BaseDomainEvent: newLedgerEvent(EventTypeInvoiceRaiseFailed, l, actor),
		Reason:          reason,
		Missing:         missing,
	}
}

// InvoiceStatusChangedEvent is raised when the ledger reports a new status
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID     `json:"customer_id"`
	InvoiceID  string        `json:"invoice_id"`
	From       InvoiceStatus `json:"from"`
	To         InvoiceStatus `json:"to"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(l *Ledger, from InvoiceStatus, actor shared.Actor) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: newLedgerEvent(EventTypeInvoiceStatusChanged, l, actor),
		CustomerID:      l.CustomerID,
		InvoiceID:       l.Invoice.ExternalID,
		From:            from,
		To:              l.Invoice.Status,
	}
}

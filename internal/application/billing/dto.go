package billing

import (
	"time"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Ledger DTOs ====================

// AddLineItemRequest adds a catalog product to the ledger
type AddLineItemRequest struct {
	ProductID   uuid.UUID  `json:"product_id" binding:"required"`
	VariationID *uuid.UUID `json:"variation_id"`
	Quantity    int        `json:"quantity"`
}

// UpdateQuantityRequest changes a line item's quantity. Values below 1 are
// raised to 1.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdatePriceRequest changes a line item's unit price. Price is the raw text
// of the price field; partial input such as "12." is accepted.
type UpdatePriceRequest struct {
	Price string `json:"price"`
}

// SyncInvoiceStatusRequest projects a status reported by the external ledger
type SyncInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft authorised sent paid overdue"`
}

// LineItemResponse is one line of the ledger
type LineItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariationID *uuid.UUID      `json:"variation_id,omitempty"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Amount      decimal.Decimal `json:"amount"`
	Tax         decimal.Decimal `json:"tax"`
}

// InvoiceResponse is the invoice projection of the ledger
type InvoiceResponse struct {
	Status         string     `json:"status"`
	ExternalID     string     `json:"external_id,omitempty"`
	Number         string     `json:"number,omitempty"`
	RaisedAt       *time.Time `json:"raised_at,omitempty"`
	LastRaiseError string     `json:"last_raise_error,omitempty"`
}

// LedgerResponse is the billing view of an order
type LedgerResponse struct {
	ID         uuid.UUID          `json:"id"`
	OrderID    uuid.UUID          `json:"order_id"`
	CustomerID uuid.UUID          `json:"customer_id"`
	Currency   string             `json:"currency"`
	Items      []LineItemResponse `json:"items"`
	Subtotal   decimal.Decimal    `json:"subtotal"`
	Tax        decimal.Decimal    `json:"tax"`
	Total      decimal.Decimal    `json:"total"`
	Locked     bool               `json:"locked"`
	Invoice    InvoiceResponse    `json:"invoice"`
	Version    int                `json:"version"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// LedgerResult is returned by every ledger command
type LedgerResult struct {
	Ledger   LedgerResponse `json:"ledger"`
	Degraded bool           `json:"degraded"`
}

// ToLedgerResponse converts a ledger, computing totals from its items
func ToLedgerResponse(l *billing.Ledger) LedgerResponse {
	items := make([]LineItemResponse, 0, len(l.Items))
	for i := range l.Items {
		item := &l.Items[i]
		items = append(items, LineItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxRate:     item.TaxRate,
			Amount:      item.Amount,
			Tax:         item.Tax(),
		})
	}
	totals := l.Totals()
	return LedgerResponse{
		ID:         l.ID,
		OrderID:    l.OrderID,
		CustomerID: l.CustomerID,
		Currency:   string(l.Currency),
		Items:      items,
		Subtotal:   totals.Subtotal.Amount(),
		Tax:        totals.Tax.Amount(),
		Total:      totals.Total.Amount(),
		Locked:     l.IsLocked(),
		Invoice: InvoiceResponse{
			Status:         string(l.Invoice.Status),
			ExternalID:     l.Invoice.ExternalID,
			Number:         l.Invoice.Number,
			RaisedAt:       l.Invoice.RaisedAt,
			LastRaiseError: l.Invoice.LastRaiseError,
		},
		Version:   l.Version,
		UpdatedAt: l.UpdatedAt,
	}
}

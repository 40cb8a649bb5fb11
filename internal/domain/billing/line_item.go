package billing

import (
	"context"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ProductSelection is what a caller picks from the catalog
type ProductSelection struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Quantity    int
}

// CatalogEntry is the catalog's answer for a selection at add-time
type CatalogEntry struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Name        string
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
}

// Catalog resolves a selection (product plus optional variation) to its
// current name, price and tax rate.
type Catalog interface {
	Resolve(ctx context.Context, partnerID uuid.UUID, sel ProductSelection) (*CatalogEntry, error)
}

// LineItem is one billed product on a ledger
type LineItem struct {
	ID          uuid.UUID
	LedgerID    uuid.UUID
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	// Name is denormalized at add-time and never changes afterwards
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	// TaxRate is a percentage, e.g. 10 for 10%
	TaxRate   decimal.Decimal
	Amount    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newLineItem(ledgerID uuid.UUID, entry CatalogEntry, quantity int) (*LineItem, error) {
	if entry.ProductID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "product id cannot be empty")
	}
	if entry.Name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "product name cannot be empty")
	}
	if entry.TaxRate.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "tax rate cannot be negative")
	}
	now := time.Now()
	item := &LineItem{
		ID:          uuid.New(),
		LedgerID:    ledgerID,
		ProductID:   entry.ProductID,
		VariationID: entry.VariationID,
		Name:        entry.Name,
		Quantity:    clampQuantity(quantity),
		UnitPrice:   clampPrice(entry.UnitPrice),
		TaxRate:     entry.TaxRate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.recompute()
	return item, nil
}

// Tax returns amount × taxRate / 100
func (i *LineItem) Tax() decimal.Decimal {
	return i.Amount.Mul(i.TaxRate).Div(hundred)
}

func (i *LineItem) setQuantity(qty int) {
	i.Quantity = clampQuantity(qty)
	i.recompute()
}

func (i *LineItem) setUnitPrice(price decimal.Decimal) {
	i.UnitPrice = clampPrice(price)
	i.recompute()
}

func (i *LineItem) recompute() {
	i.Amount = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
	i.UpdatedAt = time.Now()
}

func clampQuantity(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}

func clampPrice(price decimal.Decimal) decimal.Decimal {
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

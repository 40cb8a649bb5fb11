package billing

import (
	"time"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the ledger-side projection of the external invoice
type InvoiceStatus string

const (
	InvoiceStatusNone       InvoiceStatus = "none"
	InvoiceStatusDraft      InvoiceStatus = "draft"
	InvoiceStatusAuthorised InvoiceStatus = "authorised"
	InvoiceStatusSent       InvoiceStatus = "sent"
	InvoiceStatusPaid       InvoiceStatus = "paid"
	InvoiceStatusOverdue    InvoiceStatus = "overdue"
)

// IsValid checks if the status is known
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusNone, InvoiceStatusDraft, InvoiceStatusAuthorised,
		InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// InvoiceStatusFromPreference maps the partner preference to the status new
// invoices are created with
func InvoiceStatusFromPreference(p partner.InvoiceStatusPreference) InvoiceStatus {
	if p == partner.InvoiceStatusAuthorised {
		return InvoiceStatusAuthorised
	}
	return InvoiceStatusDraft
}

// Invoice is the projection of the invoice raised for the order
type Invoice struct {
	Status     InvoiceStatus
	ExternalID string
	Number     string
	RaisedAt   *time.Time
	// LastRaiseError is the reason the last automatic raise failed
	LastRaiseError string
}

// IsRaised reports whether an external invoice exists
func (i Invoice) IsRaised() bool {
	return i.ExternalID != ""
}

// Totals are derived from the line items on every call
type Totals struct {
	Subtotal valueobject.Money `json:"subtotal"`
	Tax      valueobject.Money `json:"tax"`
	Total    valueobject.Money `json:"total"`
}

// Ledger is the aggregate root of an order's billing
type Ledger struct {
	shared.PartnerAggregateRoot
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Currency   valueobject.Currency
	Items      []LineItem
	Invoice    Invoice
}

// NewLedger creates an empty ledger for an order
func NewLedger(partnerID, orderID, customerID uuid.UUID, currency valueobject.Currency) (*Ledger, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "order id cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "customer id cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Ledger{
		PartnerAggregateRoot: shared.NewPartnerAggregateRoot(partnerID),
		OrderID:              orderID,
		CustomerID:           customerID,
		Currency:             currency,
		Items:                make([]LineItem, 0),
		Invoice:              Invoice{Status: InvoiceStatusNone},
	}, nil
}

// IsLocked reports whether line items are read-only
func (l *Ledger) IsLocked() bool {
	return l.Invoice.IsRaised()
}

// AddLineItem appends a product priced from the catalog entry as of now
func (l *Ledger) AddLineItem(entry CatalogEntry, quantity int, actor shared.Actor) (*LineItem, error) {
	if err := l.ensureMutable(); err != nil {
		return nil, err
	}
	item, err := newLineItem(l.ID, entry, quantity)
	if err != nil {
		return nil, err
	}
	l.Items = append(l.Items, *item)
	l.touch()
	l.AddDomainEvent(NewLineItemAddedEvent(l, item, actor))
	return item, nil
}

// UpdateQuantity sets an item's quantity, clamped to at least 1
func (l *Ledger) UpdateQuantity(itemID uuid.UUID, quantity int, actor shared.Actor) error {
	if err := l.ensureMutable(); err != nil {
		return err
	}
	item, err := l.item(itemID)
	if err != nil {
		return err
	}
	previous := item.Quantity
	item.setQuantity(quantity)
	if item.Quantity == previous {
		return nil
	}
	l.touch()
	l.AddDomainEvent(NewLineItemChangedEvent(l, item, "quantity", actor))
	return nil
}

// UpdatePrice sets an item's unit price, clamped to at least 0
func (l *Ledger) UpdatePrice(itemID uuid.UUID, price decimal.Decimal, actor shared.Actor) error {
	if err := l.ensureMutable(); err != nil {
		return err
	}
	item, err := l.item(itemID)
	if err != nil {
		return err
	}
	previous := item.UnitPrice
	item.setUnitPrice(price)
	if item.UnitPrice.Equal(previous) {
		return nil
	}
	l.touch()
	l.AddDomainEvent(NewLineItemChangedEvent(l, item, "unit_price", actor))
	return nil
}

// CommitPrice commits an edited price draft
func (l *Ledger) CommitPrice(itemID uuid.UUID, draft PriceDraft, actor shared.Actor) error {
	return l.UpdatePrice(itemID, draft.Commit(), actor)
}

// RemoveLineItem drops an item. Removing the last item leaves an empty ledger.
func (l *Ledger) RemoveLineItem(itemID uuid.UUID, actor shared.Actor) error {
	if err := l.ensureMutable(); err != nil {
		return err
	}
	for idx := range l.Items {
		if l.Items[idx].ID != itemID {
			continue
		}
		removed := l.Items[idx]
		l.Items = append(l.Items[:idx], l.Items[idx+1:]...)
		l.touch()
		l.AddDomainEvent(NewLineItemRemovedEvent(l, &removed, actor))
		return nil
	}
	return shared.ErrNotFound.WithDetail("line_item_id", itemID.String())
}

// Totals computes subtotal, tax and total from the current items
func (l *Ledger) Totals() Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range l.Items {
		subtotal = subtotal.Add(l.Items[i].Amount)
		tax = tax.Add(l.Items[i].Tax())
	}
	return Totals{
		Subtotal: valueobject.MustMoney(subtotal, l.Currency),
		Tax:      valueobject.MustMoney(tax, l.Currency),
		Total:    valueobject.MustMoney(subtotal.Add(tax), l.Currency),
	}
}

// InvoiceSubject returns the point-in-time mapping subject of this ledger
func (l *Ledger) InvoiceSubject() *accounting.InvoiceSubject {
	ids := make([]uuid.UUID, 0, len(l.Items))
	for i := range l.Items {
		ids = append(ids, l.Items[i].ProductID)
	}
	return &accounting.InvoiceSubject{
		OrderID:    l.OrderID,
		PartnerID:  l.PartnerID,
		CustomerID: l.CustomerID,
		ProductIDs: ids,
	}
}

// BuildInvoiceRequest renders the ledger as a ledger API payload
func (l *Ledger) BuildInvoiceRequest(resolved *accounting.ResolvedMapping, status InvoiceStatus) accounting.InvoiceRequest {
	lines := make([]accounting.InvoiceLine, 0, len(l.Items))
	for i := range l.Items {
		item := &l.Items[i]
		codes := resolved.Products[item.ProductID]
		lines = append(lines, accounting.InvoiceLine{
			Description: item.Name,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitPrice,
			AccountCode: codes.AccountCode,
			TaxType:     codes.TaxType,
		})
	}
	return accounting.InvoiceRequest{
		ContactID: resolved.ContactID,
		Reference: l.OrderID.String(),
		Currency:  string(l.Currency),
		Status:    string(status),
		Lines:     lines,
	}
}

// EnsureCanRaise rejects a raise when an invoice already exists
func (l *Ledger) EnsureCanRaise() error {
	if l.Invoice.IsRaised() {
		return shared.ErrDuplicateInvoice.
			WithDetail("order_id", l.OrderID.String()).
			WithDetail("invoice_id", l.Invoice.ExternalID)
	}
	return nil
}

// MarkInvoiceRaised stores the external invoice. The external id is set once.
func (l *Ledger) MarkInvoiceRaised(created accounting.CreatedInvoice, status InvoiceStatus, actor shared.Actor) error {
	if err := l.EnsureCanRaise(); err != nil {
		return err
	}
	if created.InvoiceID == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "ledger returned an empty invoice id")
	}
	if status != InvoiceStatusDraft && status != InvoiceStatusAuthorised {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "invoice cannot be created as %s", status)
	}
	now := time.Now()
	l.Invoice = Invoice{
		Status:     status,
		ExternalID: created.InvoiceID,
		Number:     created.InvoiceNumber,
		RaisedAt:   &now,
	}
	l.touch()
	l.AddDomainEvent(NewInvoiceRaisedEvent(l, actor))
	return nil
}

// RecordRaiseFailure keeps the reason an automatic raise failed so it can be
// remediated. Ledger contents are untouched.
func (l *Ledger) RecordRaiseFailure(reason string, missing []accounting.MissingEntry, actor shared.Actor) {
	l.Invoice.LastRaiseError = reason
	l.touch()
	l.AddDomainEvent(NewInvoiceRaiseFailedEvent(l, reason, missing, actor))
}

// SyncInvoiceStatus projects a status reported by the external ledger
func (l *Ledger) SyncInvoiceStatus(status InvoiceStatus, actor shared.Actor) error {
	if !l.Invoice.IsRaised() {
		return shared.NewDomainError(shared.CodeInvalidInput, "no invoice raised for this order")
	}
	switch status {
	case InvoiceStatusDraft, InvoiceStatusAuthorised, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
	default:
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid invoice status %q", status)
	}
	if l.Invoice.Status == status {
		return nil
	}
	previous := l.Invoice.Status
	l.Invoice.Status = status
	l.touch()
	l.AddDomainEvent(NewInvoiceStatusChangedEvent(l, previous, actor))
	return nil
}

func (l *Ledger) ensureMutable() error {
	if l.IsLocked() {
		return shared.ErrLedgerLocked.
			WithDetail("order_id", l.OrderID.String()).
			WithDetail("invoice_id", l.Invoice.ExternalID)
	}
	return nil
}

func (l *Ledger) item(id uuid.UUID) (*LineItem, error) {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return &l.Items[i], nil
		}
	}
	return nil, shared.ErrNotFound.WithDetail("line_item_id", id.String())
}

func (l *Ledger) touch() {
	l.UpdatedAt = time.Now()
}

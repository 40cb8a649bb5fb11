package accounting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceLine is one line of an invoice sent to the external ledger
type InvoiceLine struct {
	Description string
	Quantity    int
	UnitAmount  decimal.Decimal
	AccountCode string
	TaxType     string
}

// InvoiceRequest is the payload of CreateInvoice. Reference is the order id;
// ledgers that support it use it to reject duplicates on their side too.
type InvoiceRequest struct {
	ContactID string
	Reference string
	Currency  string
	Status    string
	Lines     []InvoiceLine
}

// CreatedInvoice is the ledger's answer to CreateInvoice
type CreatedInvoice struct {
	InvoiceID     string
	InvoiceNumber string
}

// Contact, Account and TaxRate are the reference lists the ledger exposes
type Contact struct {
	ID   string
	Name string
}

type Account struct {
	Code string
	Name string
}

type TaxRate struct {
	TaxType string
	Name    string
	Rate    decimal.Decimal
}

// LedgerAPI is the partner's external accounting system. The list calls are
// only used to validate mappings, never to drive transitions.
type LedgerAPI interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*CreatedInvoice, error)
	// FindInvoiceByReference returns the live invoice carrying reference, or
	// nil, nil when there is none. Voided and deleted invoices do not count.
	FindInvoiceByReference(ctx context.Context, reference string) (*CreatedInvoice, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListTaxRates(ctx context.Context) ([]TaxRate, error)
}

// StaleMapping is a stored mapping pointing at an identifier the ledger does
// not know about
type StaleMapping struct {
	Kind     MissingKind `json:"kind"`
	ID       uuid.UUID   `json:"id"`
	External string      `json:"external"`
}

// ValidateMappings checks the partner's stored mappings against the ledger's
// reference lists and reports entries that no longer resolve.
func ValidateMappings(ctx context.Context, api LedgerAPI, repo MappingRepository, partnerID uuid.UUID) ([]StaleMapping, error) {
	contacts, err := api.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger contacts: %w", err)
	}
	accounts, err := api.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger accounts: %w", err)
	}
	rates, err := api.ListTaxRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger tax rates: %w", err)
	}

	knownContacts := make(map[string]struct{}, len(contacts))
	for _, c := range contacts {
		knownContacts[c.ID] = struct{}{}
	}
	knownAccounts := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		knownAccounts[a.Code] = struct{}{}
	}
	knownRates := make(map[string]struct{}, len(rates))
	for _, r := range rates {
		knownRates[r.TaxType] = struct{}{}
	}

	storedContacts, err := repo.ListContacts(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	storedProducts, err := repo.ListProducts(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	var stale []StaleMapping
	for _, c := range storedContacts {
		if _, ok := knownContacts[c.ExternalContactID]; !ok {
			stale = append(stale, StaleMapping{Kind: MissingContact, ID: c.CustomerID, External: c.ExternalContactID})
		}
	}
	for _, p := range storedProducts {
		if p.AccountCode != "" {
			if _, ok := knownAccounts[p.AccountCode]; !ok {
				stale = append(stale, StaleMapping{Kind: MissingAccountCode, ID: p.ProductID, External: p.AccountCode})
			}
		}
		if p.TaxType != "" {
			if _, ok := knownRates[p.TaxType]; !ok {
				stale = append(stale, StaleMapping{Kind: MissingTaxType, ID: p.ProductID, External: p.TaxType})
			}
		}
	}
	return stale, nil
}

package accounting

import (
	"context"
	"fmt"
	"sort"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MissingKind names the half of a mapping that is absent
type MissingKind string

const (
	MissingContact     MissingKind = "contact"
	MissingAccountCode MissingKind = "account_code"
	MissingTaxType     MissingKind = "tax_type"
)

// MissingEntry is one gap that blocks invoicing
type MissingEntry struct {
	Kind MissingKind `json:"kind"`
	ID   uuid.UUID   `json:"id"`
}

// InvoiceSubject is what an invoice for an order needs mapped: the customer
// and the distinct products on the ledger.
type InvoiceSubject struct {
	OrderID    uuid.UUID
	PartnerID  uuid.UUID
	CustomerID uuid.UUID
	ProductIDs []uuid.UUID
}

// SubjectSource loads the current invoice subject of an order
type SubjectSource interface {
	InvoiceSubject(ctx context.Context, orderID uuid.UUID) (*InvoiceSubject, error)
}

// ProductCodes is the resolved ledger coding of one product
type ProductCodes struct {
	AccountCode string
	TaxType     string
}

// ResolvedMapping holds the external identifiers for an invoice payload
type ResolvedMapping struct {
	ContactID string
	Products  map[uuid.UUID]ProductCodes
}

// NewIncompleteMappingError builds the error returned when invoicing is
// blocked, listing every gap so it can be fixed in one pass.
func NewIncompleteMappingError(orderID uuid.UUID, missing []MissingEntry) *shared.DomainError {
	return shared.NewDomainErrorf(shared.CodeIncompleteMapping,
		"accounting mapping incomplete: %d missing entries", len(missing)).
		WithDetail("order_id", orderID.String()).
		WithDetail("missing", missing)
}

// MissingEntries extracts the gap list from an IncompleteMapping error
func MissingEntries(err error) []MissingEntry {
	de, ok := shared.AsDomainError(err)
	if !ok || de.Code != shared.CodeIncompleteMapping {
		return nil
	}
	missing, _ := de.Details["missing"].([]MissingEntry)
	return missing
}

// Translator resolves invoice subjects against the mapping store. It only
// reads; nothing here calls the external ledger.
type Translator struct {
	mappings MappingRepository
	subjects SubjectSource
}

// NewTranslator creates a Translator
func NewTranslator(mappings MappingRepository, subjects SubjectSource) *Translator {
	return &Translator{mappings: mappings, subjects: subjects}
}

// IsFullyMapped reports whether an invoice could be raised for the order now
func (t *Translator) IsFullyMapped(ctx context.Context, orderID uuid.UUID) (bool, error) {
	subject, err := t.subjects.InvoiceSubject(ctx, orderID)
	if err != nil {
		return false, err
	}
	_, missing, err := t.lookup(ctx, subject)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Resolve loads the order's current subject and resolves it
func (t *Translator) Resolve(ctx context.Context, orderID uuid.UUID) (*ResolvedMapping, error) {
	subject, err := t.subjects.InvoiceSubject(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return t.ResolveSubject(ctx, subject)
}

// ResolveSubject resolves a snapshot taken by the caller. The ledger uses this
// with the line items it read under the order lock.
func (t *Translator) ResolveSubject(ctx context.Context, subject *InvoiceSubject) (*ResolvedMapping, error) {
	resolved, missing, err := t.lookup(ctx, subject)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, NewIncompleteMappingError(subject.OrderID, missing)
	}
	return resolved, nil
}

func (t *Translator) lookup(ctx context.Context, subject *InvoiceSubject) (*ResolvedMapping, []MissingEntry, error) {
	var missing []MissingEntry
	resolved := &ResolvedMapping{Products: make(map[uuid.UUID]ProductCodes)}

	contact, err := t.mappings.FindContact(ctx, subject.PartnerID, subject.CustomerID)
	if err != nil {
		return nil, nil, fmt.Errorf("find contact mapping: %w", err)
	}
	if contact == nil || contact.ExternalContactID == "" {
		missing = append(missing, MissingEntry{Kind: MissingContact, ID: subject.CustomerID})
	} else {
		resolved.ContactID = contact.ExternalContactID
	}

	productIDs := distinct(subject.ProductIDs)
	products, err := t.mappings.FindProducts(ctx, subject.PartnerID, productIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("find product mappings: %w", err)
	}
	for _, id := range productIDs {
		m := products[id]
		if m == nil || m.AccountCode == "" {
			missing = append(missing, MissingEntry{Kind: MissingAccountCode, ID: id})
		}
		if m == nil || m.TaxType == "" {
			missing = append(missing, MissingEntry{Kind: MissingTaxType, ID: id})
		}
		if m.IsComplete() {
			resolved.Products[id] = ProductCodes{AccountCode: m.AccountCode, TaxType: m.TaxType}
		}
	}
	return resolved, missing, nil
}

// distinct returns the ids deduplicated in a stable order
func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

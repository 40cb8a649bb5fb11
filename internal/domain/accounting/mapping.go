// Package accounting translates internal customer and product identifiers into
// the identifiers of the partner's external accounting ledger.
package accounting

import (
	"context"
	"strings"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Mapping entities
// ---------------------------------------------------------------------------

// ContactMapping links a customer to a contact in the external ledger
type ContactMapping struct {
	PartnerID  uuid.UUID
	CustomerID uuid.UUID
	// ExternalContactID is the ledger's contact identifier
	ExternalContactID string
	UpdatedAt         time.Time
}

// NewContactMapping validates and creates a contact mapping
func NewContactMapping(partnerID, customerID uuid.UUID, externalContactID string) (*ContactMapping, error) {
	if partnerID == uuid.Nil || customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "partner and customer are required")
	}
	externalContactID = strings.TrimSpace(externalContactID)
	if externalContactID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "external contact id cannot be empty")
	}
	return &ContactMapping{
		PartnerID:         partnerID,
		CustomerID:        customerID,
		ExternalContactID: externalContactID,
		UpdatedAt:         time.Now(),
	}, nil
}

// ProductMapping links a product to a revenue account and tax type. Either
// half may be missing; a product only counts as mapped when both are set.
type ProductMapping struct {
	PartnerID uuid.UUID
	ProductID uuid.UUID
	// AccountCode is the ledger's revenue account code, e.g. "200"
	AccountCode string
	// TaxType is the ledger's tax rate identifier, e.g. "OUTPUT"
	TaxType   string
	UpdatedAt time.Time
}

// NewProductMapping creates a product mapping; empty codes are stored as
// partial mappings.
func NewProductMapping(partnerID, productID uuid.UUID, accountCode, taxType string) (*ProductMapping, error) {
	if partnerID == uuid.Nil || productID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "partner and product are required")
	}
	return &ProductMapping{
		PartnerID:   partnerID,
		ProductID:   productID,
		AccountCode: strings.TrimSpace(accountCode),
		TaxType:     strings.TrimSpace(taxType),
		UpdatedAt:   time.Now(),
	}, nil
}

// IsComplete reports whether both account code and tax type are set
func (m *ProductMapping) IsComplete() bool {
	return m != nil && m.AccountCode != "" && m.TaxType != ""
}

// MappingRepository stores the mappings of every partner
type MappingRepository interface {
	// FindContact returns nil, nil when the customer is unmapped
	FindContact(ctx context.Context, partnerID, customerID uuid.UUID) (*ContactMapping, error)
	// FindProducts returns the stored mappings keyed by product id; unmapped
	// products are absent from the map
	FindProducts(ctx context.Context, partnerID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]*ProductMapping, error)
	ListContacts(ctx context.Context, partnerID uuid.UUID) ([]*ContactMapping, error)
	ListProducts(ctx context.Context, partnerID uuid.UUID) ([]*ProductMapping, error)
	SaveContact(ctx context.Context, m *ContactMapping) error
	SaveProduct(ctx context.Context, m *ProductMapping) error
	DeleteContact(ctx context.Context, partnerID, customerID uuid.UUID) error
	DeleteProduct(ctx context.Context, partnerID, productID uuid.UUID) error
}

// Package accounting administers the partner's mapping onto the external
// accounting ledger.
package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SetContactMappingRequest maps a customer to a ledger contact
type SetContactMappingRequest struct {
	ExternalContactID string `json:"external_contact_id" binding:"required"`
}

// SetProductMappingRequest maps a product to a revenue account and tax
// type. Either may be left empty and filled in later.
type SetProductMappingRequest struct {
	AccountCode string `json:"account_code"`
	TaxType     string `json:"tax_type"`
}

// ContactMappingResponse is a stored contact mapping
type ContactMappingResponse struct {
	CustomerID        uuid.UUID `json:"customer_id"`
	ExternalContactID string    `json:"external_contact_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProductMappingResponse is a stored product mapping
type ProductMappingResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	AccountCode string    `json:"account_code"`
	TaxType     string    `json:"tax_type"`
	Complete    bool      `json:"complete"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MappingsResponse lists every mapping of a partner
type MappingsResponse struct {
	Contacts []ContactMappingResponse `json:"contacts"`
	Products []ProductMappingResponse `json:"products"`
}

// MappingStatusResponse tells whether an order can be invoiced
type MappingStatusResponse struct {
	OrderID     uuid.UUID                 `json:"order_id"`
	FullyMapped bool                      `json:"fully_mapped"`
	Missing     []accounting.MissingEntry `json:"missing,omitempty"`
}

// MappingService manages contact and product mappings. Only partner admins
// may change them.
type MappingService struct {
	repo       accounting.MappingRepository
	subjects   accounting.SubjectSource
	translator *accounting.Translator
	api        accounting.LedgerAPI
	logger     *zap.Logger
}

// NewMappingService creates a new MappingService
func NewMappingService(repo accounting.MappingRepository, subjects accounting.SubjectSource, api accounting.LedgerAPI, logger *zap.Logger) *MappingService {
	return &MappingService{
		repo:       repo,
		subjects:   subjects,
		translator: accounting.NewTranslator(repo, subjects),
		api:        api,
		logger:     logger,
	}
}

// List returns the partner's mappings
func (s *MappingService) List(ctx context.Context, partnerID uuid.UUID, actor shared.Actor) (*MappingsResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListContacts(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	out := &MappingsResponse{
		Contacts: make([]ContactMappingResponse, 0, len(contacts)),
		Products: make([]ProductMappingResponse, 0, len(products)),
	}
	for _, c := range contacts {
		out.Contacts = append(out.Contacts, toContactResponse(c))
	}
	for _, p := range products {
		out.Products = append(out.Products, toProductResponse(p))
	}
	return out, nil
}

// SetContact creates or replaces a customer's contact mapping
func (s *MappingService) SetContact(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor, req SetContactMappingRequest) (*ContactMappingResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	m, err := accounting.NewContactMapping(partnerID, customerID, req.ExternalContactID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveContact(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("contact mapping saved",
		zap.String("partner_id", partnerID.String()),
		zap.String("customer_id", customerID.String()),
	)
	resp := toContactResponse(m)
	return &resp, nil
}

// SetProduct creates or replaces a product mapping
func (s *MappingService) SetProduct(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor, req SetProductMappingRequest) (*ProductMappingResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	m, err := accounting.NewProductMapping(partnerID, productID, req.AccountCode, req.TaxType)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveProduct(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("product mapping saved",
		zap.String("partner_id", partnerID.String()),
		zap.String("product_id", productID.String()),
		zap.Bool("complete", m.IsComplete()),
	)
	resp := toProductResponse(m)
	return &resp, nil
}

// DeleteContact removes a customer's contact mapping
func (s *MappingService) DeleteContact(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor) error {
	if err := ensurePartnerAdmin(actor); err != nil {
		return err
	}
	return s.repo.DeleteContact(ctx, partnerID, customerID)
}

// DeleteProduct removes a product mapping
func (s *MappingService) DeleteProduct(ctx context.Context, partnerID, productID uuid.UUID, actor shared.Actor) error {
	if err := ensurePartnerAdmin(actor); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, partnerID, productID)
}

// Status reports whether the order's current ledger is fully mapped and
// lists every gap when it is not
func (s *MappingService) Status(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*MappingStatusResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	subject, err := s.subjects.InvoiceSubject(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if subject.PartnerID != partnerID {
		return nil, shared.ErrNotFound.WithDetail("order_id", orderID.String())
	}

	resp := &MappingStatusResponse{OrderID: orderID}
	_, err = s.translator.ResolveSubject(ctx, subject)
	switch {
	case err == nil:
		resp.FullyMapped = true
	case errors.Is(err, shared.ErrIncompleteMapping):
		resp.Missing = accounting.MissingEntries(err)
	default:
		return nil, err
	}
	return resp, nil
}

// Validate checks the stored mappings against the ledger's contacts,
// accounts and tax rates
func (s *MappingService) Validate(ctx context.Context, partnerID uuid.UUID, actor shared.Actor) ([]accounting.StaleMapping, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	stale, err := accounting.ValidateMappings(ctx, s.api, s.repo, partnerID)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		s.logger.Warn("stale accounting mappings",
			zap.String("partner_id", partnerID.String()),
			zap.Int("count", len(stale)),
		)
	}
	if stale == nil {
		stale = []accounting.StaleMapping{}
	}
	return stale, nil
}

func toContactResponse(m *accounting.ContactMapping) ContactMappingResponse {
	return ContactMappingResponse{
		CustomerID:        m.CustomerID,
		ExternalContactID: m.ExternalContactID,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toProductResponse(m *accounting.ProductMapping) ProductMappingResponse {
	return ProductMappingResponse{
		ProductID:   m.ProductID,
		AccountCode: m.AccountCode,
		TaxType:     m.TaxType,
		Complete:    m.IsComplete(),
		UpdatedAt:   m.UpdatedAt,
	}
}

func ensurePartnerAdmin(actor shared.Actor) error {
	if actor.Role == shared.ActorRolePartnerAdmin {
		return nil
	}
	return shared.ErrForbiddenActor.WithDetail("actor_id", actor.ID.String())
}

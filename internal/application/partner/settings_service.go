// Package partner administers partner-level configuration: invoicing and
// revision settings, customer revision overrides and the product catalog.
package partner

import (
	"context"

	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettingsService reads and updates partner settings. Reads return the
// effective settings, with deployment defaults filled in.
type SettingsService struct {
	repo     partner.SettingsRepository
	provider partner.SettingsProvider
	logger   *zap.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo partner.SettingsRepository, provider partner.SettingsProvider, logger *zap.Logger) *SettingsService {
	return &SettingsService{repo: repo, provider: provider, logger: logger}
}

// Get returns the effective settings of a partner
func (s *SettingsService) Get(ctx context.Context, partnerID uuid.UUID, actor shared.Actor) (*SettingsResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	settings, err := s.provider.Settings(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	resp := ToSettingsResponse(settings)
	return &resp, nil
}

// Update applies the request on top of the effective settings and stores
// the result as the partner's own settings
func (s *SettingsService) Update(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, req UpdateSettingsRequest) (*SettingsResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	settings, err := s.provider.Settings(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	if req.DefaultRevisionLimit != nil {
		settings.DefaultRevisionLimit = *req.DefaultRevisionLimit
	}
	if req.InvoiceTrigger != nil {
		settings.InvoiceTrigger = partner.InvoiceTrigger(*req.InvoiceTrigger)
	}
	if req.InvoiceStatus != nil {
		settings.InvoiceStatus = partner.InvoiceStatusPreference(*req.InvoiceStatus)
	}
	if req.Currency != nil {
		currency, err := valueobject.ParseCurrency(*req.Currency)
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, err.Error())
		}
		settings.Currency = currency
	}
	settings.PartnerID = partnerID
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, &settings); err != nil {
		return nil, err
	}

	s.logger.Info("partner settings updated",
		zap.String("partner_id", partnerID.String()),
		zap.String("invoice_trigger", string(settings.InvoiceTrigger)),
		zap.Int("default_revision_limit", settings.DefaultRevisionLimit),
	)
	resp := ToSettingsResponse(settings)
	return &resp, nil
}

func ensurePartnerAdmin(actor shared.Actor) error {
	if actor.Role == shared.ActorRolePartnerAdmin {
		return nil
	}
	return shared.ErrForbiddenActor.WithDetail("actor_id", actor.ID.String())
}

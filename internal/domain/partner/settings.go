// Package partner holds partner-level configuration consumed by the workflow.
package partner

import (
	"context"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// InvoiceTrigger decides when an invoice is raised for an order
type InvoiceTrigger string

const (
	// InvoiceTriggerNever disables invoicing for the partner
	InvoiceTriggerNever InvoiceTrigger = "never"
	// InvoiceTriggerOnDelivered raises automatically when an order is approved
	InvoiceTriggerOnDelivered InvoiceTrigger = "on_delivered"
	// InvoiceTriggerManualOnly only raises on an explicit request
	InvoiceTriggerManualOnly InvoiceTrigger = "manual_only"
)

// IsValid checks if the trigger is known
func (t InvoiceTrigger) IsValid() bool {
	switch t {
	case InvoiceTriggerNever, InvoiceTriggerOnDelivered, InvoiceTriggerManualOnly:
		return true
	}
	return false
}

// AllowsManualRaise reports whether an explicit raise-invoice is accepted
func (t InvoiceTrigger) AllowsManualRaise() bool {
	return t == InvoiceTriggerOnDelivered || t == InvoiceTriggerManualOnly
}

// InvoiceStatusPreference is the status new invoices are created with
type InvoiceStatusPreference string

const (
	InvoiceStatusDraft      InvoiceStatusPreference = "draft"
	InvoiceStatusAuthorised InvoiceStatusPreference = "authorised"
)

// IsValid checks if the preference is known
func (p InvoiceStatusPreference) IsValid() bool {
	return p == InvoiceStatusDraft || p == InvoiceStatusAuthorised
}

// Settings is the partner configuration passed into the resolver and the
// ledger at call time.
type Settings struct {
	PartnerID            uuid.UUID
	DefaultRevisionLimit int
	InvoiceTrigger       InvoiceTrigger
	InvoiceStatus        InvoiceStatusPreference
	Currency             valueobject.Currency
}

// Validate checks the settings are usable
func (s Settings) Validate() error {
	if s.DefaultRevisionLimit < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "default revision limit must be >= 0")
	}
	if !s.InvoiceTrigger.IsValid() {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid invoice trigger %q", s.InvoiceTrigger)
	}
	if !s.InvoiceStatus.IsValid() {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid invoice status %q", s.InvoiceStatus)
	}
	if _, err := valueobject.ParseCurrency(string(s.Currency)); err != nil {
		return shared.NewDomainError(shared.CodeInvalidInput, err.Error())
	}
	return nil
}

// SettingsProvider returns the effective settings for a partner, falling back
// to deployment defaults when the partner has none stored.
type SettingsProvider interface {
	Settings(ctx context.Context, partnerID uuid.UUID) (Settings, error)
}

// SettingsRepository persists per-partner overrides
type SettingsRepository interface {
	// FindByPartner returns nil, nil when nothing is stored
	FindByPartner(ctx context.Context, partnerID uuid.UUID) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
}

// Directory lists the people that belong to a partner
type Directory interface {
	ListAdmins(ctx context.Context, partnerID uuid.UUID) ([]uuid.UUID, error)
}

// DefaultsProvider resolves settings from a repository with static defaults
type DefaultsProvider struct {
	repo     SettingsRepository
	defaults Settings
}

// NewDefaultsProvider creates a SettingsProvider over repo with fallback
// defaults. The PartnerID of defaults is ignored.
func NewDefaultsProvider(repo SettingsRepository, defaults Settings) *DefaultsProvider {
	return &DefaultsProvider{repo: repo, defaults: defaults}
}

// Settings implements SettingsProvider
func (p *DefaultsProvider) Settings(ctx context.Context, partnerID uuid.UUID) (Settings, error) {
	out := p.defaults
	out.PartnerID = partnerID
	if p.repo == nil {
		return out, nil
	}
	stored, err := p.repo.FindByPartner(ctx, partnerID)
	if err != nil {
		return Settings{}, err
	}
	if stored == nil {
		return out, nil
	}
	merged := *stored
	if !merged.InvoiceTrigger.IsValid() {
		merged.InvoiceTrigger = out.InvoiceTrigger
	}
	if !merged.InvoiceStatus.IsValid() {
		merged.InvoiceStatus = out.InvoiceStatus
	}
	if merged.Currency == "" {
		merged.Currency = out.Currency
	}
	return merged, nil
}

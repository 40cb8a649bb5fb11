package partner

import (
	"context"
	"time"

	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RevisionPolicyService manages per-customer revision overrides
type RevisionPolicyService struct {
	policies revision.PolicyRepository
	settings partner.SettingsProvider
	logger   *zap.Logger
}

// NewRevisionPolicyService creates a new RevisionPolicyService
func NewRevisionPolicyService(policies revision.PolicyRepository, settings partner.SettingsProvider, logger *zap.Logger) *RevisionPolicyService {
	return &RevisionPolicyService{policies: policies, settings: settings, logger: logger}
}

// Get returns a customer's override. Customers without one report
// "default".
func (s *RevisionPolicyService) Get(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor) (*RevisionPolicyResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	stored, err := s.find(ctx, partnerID, customerID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return s.respond(ctx, partnerID, customerID, revision.DefaultPolicy(), nil)
	}
	updated := stored.UpdatedAt
	return s.respond(ctx, partnerID, customerID, stored.Policy, &updated)
}

// Set stores a customer's override. Setting "default" removes it.
func (s *RevisionPolicyService) Set(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor, req SetRevisionPolicyRequest) (*RevisionPolicyResponse, error) {
	if err := ensurePartnerAdmin(actor); err != nil {
		return nil, err
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "customer id is required")
	}
	policy, err := revision.ParsePolicy(req.Policy)
	if err != nil {
		return nil, err
	}
	if policy.Kind == revision.PolicyDefault {
		if err := s.policies.Delete(ctx, partnerID, customerID); err != nil {
			return nil, err
		}
		return s.respond(ctx, partnerID, customerID, policy, nil)
	}

	stored := &revision.CustomerPolicy{
		CustomerID: customerID,
		PartnerID:  partnerID,
		Policy:     policy,
		UpdatedAt:  time.Now(),
	}
	if err := s.policies.Save(ctx, stored); err != nil {
		return nil, err
	}
	s.logger.Info("revision policy set",
		zap.String("partner_id", partnerID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("policy", policy.String()),
	)
	return s.respond(ctx, partnerID, customerID, policy, &stored.UpdatedAt)
}

// Delete drops a customer's override so the partner default applies
func (s *RevisionPolicyService) Delete(ctx context.Context, partnerID, customerID uuid.UUID, actor shared.Actor) error {
	if err := ensurePartnerAdmin(actor); err != nil {
		return err
	}
	stored, err := s.find(ctx, partnerID, customerID)
	if err != nil {
		return err
	}
	if stored == nil {
		return nil
	}
	return s.policies.Delete(ctx, partnerID, customerID)
}

func (s *RevisionPolicyService) find(ctx context.Context, partnerID, customerID uuid.UUID) (*revision.CustomerPolicy, error) {
	return s.policies.FindByCustomer(ctx, partnerID, customerID)
}

func (s *RevisionPolicyService) respond(ctx context.Context, partnerID, customerID uuid.UUID, policy revision.Policy, updatedAt *time.Time) (*RevisionPolicyResponse, error) {
	settings, err := s.settings.Settings(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return &RevisionPolicyResponse{
		CustomerID:     customerID,
		Policy:         policy.String(),
		EffectiveLimit: revision.EffectiveLimit(&policy, settings.DefaultRevisionLimit),
		UpdatedAt:      updatedAt,
	}, nil
}

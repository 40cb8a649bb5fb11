package revision

import (
	"context"

	"github.com/google/uuid"
)

// Decision is the outcome of a revision check
type Decision struct {
	Allowed bool  `json:"allowed"`
	Limit   Limit `json:"limit"`
}

// Resolve computes whether one more revision round is allowed for a customer
// that has already used count rounds. policy may be nil, meaning no override.
// defaultLimit is the partner-wide default and is only consulted when the
// policy defers to it.
func Resolve(policy *Policy, defaultLimit, count int) Decision {
	limit := EffectiveLimit(policy, defaultLimit)
	if limit.Unlimited {
		return Decision{Allowed: true, Limit: limit}
	}
	return Decision{Allowed: count < limit.Value, Limit: limit}
}

// EffectiveLimit resolves the override against the partner default
func EffectiveLimit(policy *Policy, defaultLimit int) Limit {
	if policy == nil {
		return Rounds(max(defaultLimit, 0))
	}
	switch policy.Kind {
	case PolicyUnlimited:
		return Unlimited
	case PolicyCustom:
		return Rounds(policy.Limit)
	default:
		return Rounds(max(defaultLimit, 0))
	}
}

// Resolver reads a customer's stored override and resolves it. It never
// writes.
type Resolver struct {
	policies PolicyRepository
}

// NewResolver creates a Resolver
func NewResolver(policies PolicyRepository) *Resolver {
	return &Resolver{policies: policies}
}

// Check resolves the decision for customerID's orders with partnerID given
// the partner default
func (r *Resolver) Check(ctx context.Context, partnerID, customerID uuid.UUID, count, defaultLimit int) (Decision, error) {
	stored, err := r.policies.FindByCustomer(ctx, partnerID, customerID)
	if err != nil {
		return Decision{}, err
	}
	if stored == nil {
		return Resolve(nil, defaultLimit, count), nil
	}
	return Resolve(&stored.Policy, defaultLimit, count), nil
}

// Package revision resolves how many revision rounds a customer is entitled to.
package revision

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PolicyKind is the type of a customer's revision override
type PolicyKind string

const (
	PolicyDefault   PolicyKind = "default"
	PolicyUnlimited PolicyKind = "unlimited"
	PolicyCustom    PolicyKind = "custom"
)

// IsValid checks if the kind is known
func (k PolicyKind) IsValid() bool {
	switch k {
	case PolicyDefault, PolicyUnlimited, PolicyCustom:
		return true
	}
	return false
}

// Policy is a customer's revision override. Limit is only meaningful for
// PolicyCustom, where zero is a legal value meaning "no revisions at all".
type Policy struct {
	Kind  PolicyKind `json:"kind"`
	Limit int        `json:"limit,omitempty"`
}

// DefaultPolicy defers to the partner-wide default
func DefaultPolicy() Policy { return Policy{Kind: PolicyDefault} }

// UnlimitedPolicy never blocks a revision
func UnlimitedPolicy() Policy { return Policy{Kind: PolicyUnlimited} }

// CustomPolicy allows exactly n revision rounds
func CustomPolicy(n int) (Policy, error) {
	if n < 0 {
		return Policy{}, shared.NewDomainErrorf(shared.CodeInvalidInput, "custom revision limit must be >= 0, got %d", n)
	}
	return Policy{Kind: PolicyCustom, Limit: n}, nil
}

// ParsePolicy reads the textual form used by the API: "default",
// "unlimited" or a non-negative integer.
func ParsePolicy(s string) (Policy, error) {
	switch PolicyKind(s) {
	case PolicyDefault:
		return DefaultPolicy(), nil
	case PolicyUnlimited:
		return UnlimitedPolicy(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Policy{}, shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid revision policy %q", s)
	}
	return CustomPolicy(n)
}

// String renders the policy in the form accepted by ParsePolicy
func (p Policy) String() string {
	if p.Kind == PolicyCustom {
		return strconv.Itoa(p.Limit)
	}
	return string(p.Kind)
}

// CustomerPolicy is the stored override for one customer. A customer with no
// CustomerPolicy row falls back to the partner default, same as PolicyDefault.
type CustomerPolicy struct {
	CustomerID uuid.UUID
	PartnerID  uuid.UUID
	Policy     Policy
	UpdatedAt  time.Time
}

// PolicyRepository reads and writes customer overrides. An override belongs
// to one (partner, customer) pair; the same customer ordering from another
// partner gets that partner's default.
type PolicyRepository interface {
	// FindByCustomer returns nil, nil when no override is stored
	FindByCustomer(ctx context.Context, partnerID, customerID uuid.UUID) (*CustomerPolicy, error)
	Save(ctx context.Context, policy *CustomerPolicy) error
	Delete(ctx context.Context, partnerID, customerID uuid.UUID) error
}

// Limit is the effective number of allowed revision rounds
type Limit struct {
	Unlimited bool
	Value     int
}

// Unlimited is the Limit of an unlimited policy
var Unlimited = Limit{Unlimited: true}

// Rounds returns a bounded limit
func Rounds(n int) Limit { return Limit{Value: n} }

func (l Limit) String() string {
	if l.Unlimited {
		return string(PolicyUnlimited)
	}
	return strconv.Itoa(l.Value)
}

// MarshalJSON renders the limit as a number, or the string "unlimited"
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.Unlimited {
		return json.Marshal(string(PolicyUnlimited))
	}
	return json.Marshal(l.Value)
}

// UnmarshalJSON accepts a number or the string "unlimited"
func (l *Limit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != string(PolicyUnlimited) {
			return fmt.Errorf("invalid revision limit %q", s)
		}
		*l = Unlimited
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid revision limit: %w", err)
	}
	*l = Rounds(n)
	return nil
}

package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MemoryMappings is an in-memory accounting.MappingRepository
type MemoryMappings struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]*accounting.ContactMapping
	products map[uuid.UUID]*accounting.ProductMapping
}

// NewMemoryMappings creates an empty mapping store
func NewMemoryMappings() *MemoryMappings {
	return &MemoryMappings{
		contacts: make(map[uuid.UUID]*accounting.ContactMapping),
		products: make(map[uuid.UUID]*accounting.ProductMapping),
	}
}

func (r *MemoryMappings) FindContact(_ context.Context, partnerID, customerID uuid.UUID) (*accounting.ContactMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.contacts[customerID]
	if !ok || m.PartnerID != partnerID {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (r *MemoryMappings) FindProducts(_ context.Context, partnerID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]*accounting.ProductMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*accounting.ProductMapping)
	for _, id := range productIDs {
		if m, ok := r.products[id]; ok && m.PartnerID == partnerID {
			c := *m
			out[id] = &c
		}
	}
	return out, nil
}

func (r *MemoryMappings) ListContacts(_ context.Context, partnerID uuid.UUID) ([]*accounting.ContactMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*accounting.ContactMapping
	for _, m := range r.contacts {
		if m.PartnerID == partnerID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *MemoryMappings) ListProducts(_ context.Context, partnerID uuid.UUID) ([]*accounting.ProductMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*accounting.ProductMapping
	for _, m := range r.products {
		if m.PartnerID == partnerID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *MemoryMappings) SaveContact(_ context.Context, m *accounting.ContactMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *m
	r.contacts[m.CustomerID] = &c
	return nil
}

func (r *MemoryMappings) SaveProduct(_ context.Context, m *accounting.ProductMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *m
	r.products[m.ProductID] = &c
	return nil
}

func (r *MemoryMappings) DeleteContact(_ context.Context, _, customerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contacts, customerID)
	return nil
}

func (r *MemoryMappings) DeleteProduct(_ context.Context, _, productID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, productID)
	return nil
}

type policyKey struct{ partnerID, customerID uuid.UUID }

// MemoryPolicies is an in-memory revision.PolicyRepository
type MemoryPolicies struct {
	mu       sync.Mutex
	policies map[policyKey]*revision.CustomerPolicy
}

// NewMemoryPolicies creates an empty policy store
func NewMemoryPolicies() *MemoryPolicies {
	return &MemoryPolicies{policies: make(map[policyKey]*revision.CustomerPolicy)}
}

func (r *MemoryPolicies) FindByCustomer(_ context.Context, partnerID, customerID uuid.UUID) (*revision.CustomerPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[policyKey{partnerID, customerID}]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *MemoryPolicies) Save(_ context.Context, policy *revision.CustomerPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *policy
	r.policies[policyKey{policy.PartnerID, policy.CustomerID}] = &c
	return nil
}

func (r *MemoryPolicies) Delete(_ context.Context, partnerID, customerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.policies, policyKey{partnerID, customerID})
	return nil
}

// MemorySettings is an in-memory partner.SettingsRepository
type MemorySettings struct {
	mu       sync.Mutex
	settings map[uuid.UUID]partner.Settings
}

// NewMemorySettings creates an empty settings store
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{settings: make(map[uuid.UUID]partner.Settings)}
}

func (r *MemorySettings) FindByPartner(_ context.Context, partnerID uuid.UUID) (*partner.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[partnerID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemorySettings) Save(_ context.Context, settings *partner.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[settings.PartnerID] = *settings
	return nil
}

// StaticCatalog resolves selections from a fixed product list
type StaticCatalog struct {
	mu      sync.Mutex
	entries map[uuid.UUID]billing.CatalogEntry
}

// NewStaticCatalog creates a catalog over entries
func NewStaticCatalog(entries ...billing.CatalogEntry) *StaticCatalog {
	c := &StaticCatalog{entries: make(map[uuid.UUID]billing.CatalogEntry)}
	for _, e := range entries {
		c.entries[e.ProductID] = e
	}
	return c
}

// Add registers or replaces a product
func (c *StaticCatalog) Add(entry billing.CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.ProductID] = entry
}

// Resolve implements billing.Catalog
func (c *StaticCatalog) Resolve(_ context.Context, _ uuid.UUID, sel billing.ProductSelection) (*billing.CatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sel.ProductID]
	if !ok {
		return nil, shared.ErrNotFound.WithDetail("product_id", sel.ProductID.String())
	}
	e.VariationID = sel.VariationID
	return &e, nil
}

// StaticDirectory lists a fixed set of partner admins
type StaticDirectory struct {
	Admins map[uuid.UUID][]uuid.UUID
}

// ListAdmins implements partner.Directory
func (d *StaticDirectory) ListAdmins(_ context.Context, partnerID uuid.UUID) ([]uuid.UUID, error) {
	return d.Admins[partnerID], nil
}

// MemoryRecords is an in-memory activity.RecordRepository
type MemoryRecords struct {
	mu      sync.Mutex
	records []activity.Record
}

// NewMemoryRecords creates an empty activity store
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{}
}

func (r *MemoryRecords) Append(_ context.Context, record *activity.Record) (*activity.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].OrderID == record.OrderID && r.records[i].Sequence == record.Sequence {
			existing := r.records[i]
			return &existing, false, nil
		}
	}
	r.records = append(r.records, *record)
	return record, true, nil
}

func (r *MemoryRecords) ListByOrder(_ context.Context, orderID uuid.UUID) ([]activity.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []activity.Record
	for _, rec := range r.records {
		if rec.OrderID == orderID {
			out = append(out, rec)
		}
	}
	activity.SortRecords(out)
	return out, nil
}

// MemoryNotifications is an in-memory activity.NotificationRepository
type MemoryNotifications struct {
	mu    sync.Mutex
	items []*activity.Notification
}

// NewMemoryNotifications creates an empty inbox store
func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{}
}

func (r *MemoryNotifications) Enqueue(_ context.Context, notifications []*activity.Notification) ([]*activity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stored []*activity.Notification
	for _, n := range notifications {
		if r.exists(n.ActivityID, n.RecipientID) {
			continue
		}
		c := *n
		r.items = append(r.items, &c)
		stored = append(stored, n)
	}
	return stored, nil
}

func (r *MemoryNotifications) exists(activityID, recipientID uuid.UUID) bool {
	for _, n := range r.items {
		if n.ActivityID == activityID && n.RecipientID == recipientID {
			return true
		}
	}
	return false
}

func (r *MemoryNotifications) FindByID(_ context.Context, id uuid.UUID) (*activity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			c := *n
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound.WithDetail("notification_id", id.String())
}

func (r *MemoryNotifications) ListForRecipient(_ context.Context, recipientID uuid.UUID, filter activity.NotificationFilter) ([]activity.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []activity.Notification
	for _, n := range r.items {
		if n.RecipientID != recipientID || (filter.UnreadOnly && n.Read) {
			continue
		}
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *MemoryNotifications) MarkRead(_ context.Context, recipientID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id && n.RecipientID == recipientID {
			n.MarkRead()
			return nil
		}
	}
	return shared.ErrNotFound.WithDetail("notification_id", id.String())
}

func (r *MemoryNotifications) MarkAllRead(_ context.Context, recipientID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.RecipientID == recipientID && !item.Read {
			item.MarkRead()
			n++
		}
	}
	return n, nil
}

func (r *MemoryNotifications) Delete(_ context.Context, recipientID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.items {
		if n.ID == id && n.RecipientID == recipientID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound.WithDetail("notification_id", id.String())
}

// All returns every stored notification
func (r *MemoryNotifications) All() []activity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Notification, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, *n)
	}
	return out
}

var (
	_ accounting.MappingRepository    = (*MemoryMappings)(nil)
	_ revision.PolicyRepository       = (*MemoryPolicies)(nil)
	_ partner.SettingsRepository      = (*MemorySettings)(nil)
	_ billing.Catalog                 = (*StaticCatalog)(nil)
	_ partner.Directory               = (*StaticDirectory)(nil)
	_ activity.RecordRepository       = (*MemoryRecords)(nil)
	_ activity.NotificationRepository = (*MemoryNotifications)(nil)
)

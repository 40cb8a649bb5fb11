package partner

import (
	"context"
	"testing"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/editdesk/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockProductRepository is a mock implementation of billing.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, partnerID, id uuid.UUID) (*billing.Product, error) {
	args := m.Called(ctx, partnerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Product), args.Error(1)
}

func (m *MockProductRepository) ListForPartner(ctx context.Context, partnerID uuid.UUID, activeOnly bool) ([]billing.Product, error) {
	args := m.Called(ctx, partnerID, activeOnly)
	return args.Get(0).([]billing.Product), args.Error(1)
}

func (m *MockProductRepository) Save(ctx context.Context, product *billing.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

var (
	testAdmin    = shared.NewActor(testutil.NewTestUUID("admin"), shared.ActorRolePartnerAdmin)
	testCustomer = shared.NewActor(testutil.NewTestUUID("customer"), shared.ActorRoleCustomer)
)

func deploymentDefaults() partner.Settings {
	return partner.Settings{
		DefaultRevisionLimit: 2,
		InvoiceTrigger:       partner.InvoiceTriggerManualOnly,
		InvoiceStatus:        partner.InvoiceStatusDraft,
		Currency:             valueobject.DefaultCurrency,
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// =============================================================================
// SettingsService
// =============================================================================

func TestSettingsService_GetFallsBackToDefaults(t *testing.T) {
	repo := testutil.NewMemorySettings()
	svc := NewSettingsService(repo, partner.NewDefaultsProvider(repo, deploymentDefaults()), zap.NewNop())
	partnerID := testutil.TestPartnerID()

	resp, err := svc.Get(context.Background(), partnerID, testAdmin)

	require.NoError(t, err)
	assert.Equal(t, partnerID, resp.PartnerID)
	assert.Equal(t, 2, resp.DefaultRevisionLimit)
	assert.Equal(t, "manual_only", resp.InvoiceTrigger)
	assert.Equal(t, "USD", resp.Currency)
}

func TestSettingsService_UpdateMergesAndStores(t *testing.T) {
	repo := testutil.NewMemorySettings()
	svc := NewSettingsService(repo, partner.NewDefaultsProvider(repo, deploymentDefaults()), zap.NewNop())
	partnerID := testutil.TestPartnerID()
	ctx := context.Background()

	resp, err := svc.Update(ctx, partnerID, testAdmin, UpdateSettingsRequest{
		InvoiceTrigger: strPtr("on_delivered"),
		Currency:       strPtr(" nzd "),
	})
	require.NoError(t, err)
	assert.Equal(t, "on_delivered", resp.InvoiceTrigger)
	assert.Equal(t, "NZD", resp.Currency)
	assert.Equal(t, 2, resp.DefaultRevisionLimit)

	stored, err := repo.FindByPartner(ctx, partnerID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, partner.InvoiceTriggerOnDelivered, stored.InvoiceTrigger)
}

func TestSettingsService_UpdateValidates(t *testing.T) {
	repo := testutil.NewMemorySettings()
	svc := NewSettingsService(repo, partner.NewDefaultsProvider(repo, deploymentDefaults()), zap.NewNop())
	partnerID := testutil.TestPartnerID()

	tests := []struct {
		name string
		req  UpdateSettingsRequest
	}{
		{"negative limit", UpdateSettingsRequest{DefaultRevisionLimit: intPtr(-1)}},
		{"unknown trigger", UpdateSettingsRequest{InvoiceTrigger: strPtr("weekly")}},
		{"unknown status", UpdateSettingsRequest{InvoiceStatus: strPtr("paid")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), partnerID, testAdmin, tt.req)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}

	stored, err := repo.FindByPartner(context.Background(), partnerID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSettingsService_AdminOnly(t *testing.T) {
	repo := testutil.NewMemorySettings()
	svc := NewSettingsService(repo, partner.NewDefaultsProvider(repo, deploymentDefaults()), zap.NewNop())

	_, err := svc.Update(context.Background(), uuid.New(), testCustomer, UpdateSettingsRequest{DefaultRevisionLimit: intPtr(5)})

	assert.ErrorIs(t, err, shared.ErrForbiddenActor)
}

// =============================================================================
// RevisionPolicyService
// =============================================================================

func newPolicyService() (*RevisionPolicyService, *testutil.MemoryPolicies) {
	policies := testutil.NewMemoryPolicies()
	settings := partner.NewDefaultsProvider(testutil.NewMemorySettings(), deploymentDefaults())
	return NewRevisionPolicyService(policies, settings, zap.NewNop()), policies
}

func TestRevisionPolicyService_SetAndGet(t *testing.T) {
	svc, _ := newPolicyService()
	ctx := context.Background()
	partnerID := testutil.TestPartnerID()
	customerID := testCustomer.ID

	resp, err := svc.Get(ctx, partnerID, customerID, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, "default", resp.Policy)
	assert.Equal(t, revision.Rounds(2), resp.EffectiveLimit)
	assert.Nil(t, resp.UpdatedAt)

	resp, err = svc.Set(ctx, partnerID, customerID, testAdmin, SetRevisionPolicyRequest{Policy: "unlimited"})
	require.NoError(t, err)
	assert.Equal(t, revision.Unlimited, resp.EffectiveLimit)

	resp, err = svc.Set(ctx, partnerID, customerID, testAdmin, SetRevisionPolicyRequest{Policy: "0"})
	require.NoError(t, err)
	assert.Equal(t, "0", resp.Policy)
	assert.Equal(t, revision.Rounds(0), resp.EffectiveLimit)

	resp, err = svc.Get(ctx, partnerID, customerID, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, "0", resp.Policy)
	assert.NotNil(t, resp.UpdatedAt)
}

func TestRevisionPolicyService_SettingDefaultRemovesOverride(t *testing.T) {
	svc, policies := newPolicyService()
	ctx := context.Background()
	partnerID := testutil.TestPartnerID()

	_, err := svc.Set(ctx, partnerID, testCustomer.ID, testAdmin, SetRevisionPolicyRequest{Policy: "4"})
	require.NoError(t, err)
	_, err = svc.Set(ctx, partnerID, testCustomer.ID, testAdmin, SetRevisionPolicyRequest{Policy: "default"})
	require.NoError(t, err)

	stored, err := policies.FindByCustomer(ctx, partnerID, testCustomer.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRevisionPolicyService_RejectsBadInput(t *testing.T) {
	svc, _ := newPolicyService()
	for _, raw := range []string{"-1", "lots", ""} {
		_, err := svc.Set(context.Background(), testutil.TestPartnerID(), testCustomer.ID, testAdmin, SetRevisionPolicyRequest{Policy: raw})
		assert.ErrorIs(t, err, shared.ErrInvalidInput, raw)
	}
}

func TestRevisionPolicyService_OverridesArePerPartner(t *testing.T) {
	svc, policies := newPolicyService()
	ctx := context.Background()
	mine, other := testutil.TestPartnerID(), uuid.New()
	_, err := svc.Set(ctx, mine, testCustomer.ID, testAdmin, SetRevisionPolicyRequest{Policy: "3"})
	require.NoError(t, err)

	resp, err := svc.Get(ctx, other, testCustomer.ID, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, "default", resp.Policy)
	assert.Nil(t, resp.UpdatedAt)

	resp, err = svc.Set(ctx, other, testCustomer.ID, testAdmin, SetRevisionPolicyRequest{Policy: "unlimited"})
	require.NoError(t, err)
	assert.Equal(t, revision.Unlimited, resp.EffectiveLimit)

	require.NoError(t, svc.Delete(ctx, other, testCustomer.ID, testAdmin))
	kept, err := policies.FindByCustomer(ctx, mine, testCustomer.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "3", kept.Policy.String())
}

// =============================================================================
// CatalogService
// =============================================================================

func TestCatalogService_Create(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogService(repo, zap.NewNop())
	partnerID := testutil.TestPartnerID()
	repo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Product")).Return(nil)

	resp, err := svc.Create(context.Background(), partnerID, testAdmin, CreateProductRequest{
		Name:      "Photo retouch",
		UnitPrice: decimal.NewFromInt(100),
		TaxRate:   decimal.NewFromInt(10),
	})

	require.NoError(t, err)
	assert.Equal(t, "Photo retouch", resp.Name)
	assert.True(t, resp.Active)
	assert.NotNil(t, resp.Variations)
	repo.AssertExpectations(t)
}

func TestCatalogService_CreateRejectsNonAdmin(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogService(repo, zap.NewNop())

	_, err := svc.Create(context.Background(), uuid.New(), testCustomer, CreateProductRequest{Name: "x"})

	assert.ErrorIs(t, err, shared.ErrForbiddenActor)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCatalogService_UpdateAndDeactivate(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogService(repo, zap.NewNop())
	partnerID := testutil.TestPartnerID()
	product, err := billing.NewProduct(partnerID, "Photo retouch", decimal.NewFromInt(100), decimal.NewFromInt(10))
	require.NoError(t, err)
	repo.On("FindByID", mock.Anything, partnerID, product.ID).Return(product, nil)
	repo.On("Save", mock.Anything, product).Return(nil)

	resp, err := svc.Update(context.Background(), partnerID, product.ID, testAdmin, UpdateProductRequest{
		UnitPrice: decPtr(120),
		Active:    boolPtr(false),
	})

	require.NoError(t, err)
	assert.Equal(t, "Photo retouch", resp.Name)
	assert.True(t, resp.UnitPrice.Equal(decimal.NewFromInt(120)))
	assert.True(t, resp.TaxRate.Equal(decimal.NewFromInt(10)))
	assert.False(t, resp.Active)
	repo.AssertExpectations(t)
}

func TestCatalogService_AddVariation(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogService(repo, zap.NewNop())
	partnerID := testutil.TestPartnerID()
	product, err := billing.NewProduct(partnerID, "Photo retouch", decimal.NewFromInt(100), decimal.Zero)
	require.NoError(t, err)
	repo.On("FindByID", mock.Anything, partnerID, product.ID).Return(product, nil)
	repo.On("Save", mock.Anything, product).Return(nil)

	resp, err := svc.AddVariation(context.Background(), partnerID, product.ID, testAdmin, AddVariationRequest{
		Name:      "Express",
		UnitPrice: decPtr(150),
	})

	require.NoError(t, err)
	require.Len(t, resp.Variations, 1)
	assert.Equal(t, "Express", resp.Variations[0].Name)
}

func TestCatalogService_UnknownProduct(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogService(repo, zap.NewNop())
	missing := uuid.New()
	repo.On("FindByID", mock.Anything, mock.Anything, missing).Return(nil, shared.ErrNotFound)

	_, err := svc.AddVariation(context.Background(), uuid.New(), missing, testAdmin, AddVariationRequest{Name: "Express"})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCatalogService_List(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogService(repo, zap.NewNop())
	partnerID := testutil.TestPartnerID()
	product, err := billing.NewProduct(partnerID, "Cut", decimal.NewFromInt(10), decimal.Zero)
	require.NoError(t, err)
	repo.On("ListForPartner", mock.Anything, partnerID, true).Return([]billing.Product{*product}, nil)

	items, err := svc.List(context.Background(), partnerID, ProductListFilter{ActiveOnly: true})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, product.ID, items[0].ID)
}

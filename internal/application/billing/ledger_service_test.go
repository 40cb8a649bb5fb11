package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/editdesk/backend/internal/application/workflow"
	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/editdesk/backend/internal/infrastructure/cache"
	"github.com/editdesk/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ledgerFixture struct {
	ledgers  *testutil.MemoryLedgers
	outbox   *testutil.MemoryOutbox
	mappings *testutil.MemoryMappings
	settings *testutil.MemorySettings
	api      *testutil.StubLedgerAPI
	catalog  *testutil.StaticCatalog
	service  *LedgerService

	partnerID  uuid.UUID
	customerID uuid.UUID
	orderID    uuid.UUID
	productID  uuid.UUID
	admin      shared.Actor
}

func newLedgerFixture(t *testing.T, trigger partner.InvoiceTrigger) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		ledgers:    testutil.NewMemoryLedgers(),
		outbox:     testutil.NewMemoryOutbox(),
		mappings:   testutil.NewMemoryMappings(),
		settings:   testutil.NewMemorySettings(),
		api:        testutil.NewStubLedgerAPI(),
		partnerID:  testutil.TestPartnerID(),
		customerID: testutil.NewTestUUID("customer"),
		orderID:    uuid.New(),
		productID:  testutil.NewTestUUID("retouch"),
		admin:      shared.NewActor(testutil.NewTestUUID("admin"), shared.ActorRolePartnerAdmin),
	}
	f.catalog = testutil.NewStaticCatalog(billing.CatalogEntry{
		ProductID: f.productID,
		Name:      "Photo retouch",
		UnitPrice: decimal.NewFromInt(100),
		TaxRate:   decimal.NewFromInt(10),
	})

	ledger, err := billing.NewLedger(f.partnerID, f.orderID, f.customerID, valueobject.DefaultCurrency)
	require.NoError(t, err)
	require.NoError(t, f.ledgers.Create(context.Background(), ledger))

	require.NoError(t, f.settings.Save(context.Background(), &partner.Settings{
		PartnerID:      f.partnerID,
		InvoiceTrigger: trigger,
		InvoiceStatus:  partner.InvoiceStatusDraft,
		Currency:       valueobject.DefaultCurrency,
	}))
	provider := partner.NewDefaultsProvider(f.settings, partner.Settings{
		InvoiceTrigger: partner.InvoiceTriggerManualOnly,
		InvoiceStatus:  partner.InvoiceStatusDraft,
		Currency:       valueobject.DefaultCurrency,
	})

	scope := workflow.NewNoOpTransactionScope(testutil.NewMemoryOrders(), f.ledgers, f.outbox)
	committer := workflow.NewCommitter(scope, cache.NewKeyedLocker(), testutil.NewMemorySequencer())
	translator := accounting.NewTranslator(f.mappings, NewLedgerSubjects(f.ledgers))
	f.service = NewLedgerService(f.ledgers, committer, f.catalog, translator, f.api, provider)
	f.service.SetLogger(zap.NewNop())
	return f
}

func (f *ledgerFixture) mapEverything(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	contact, err := accounting.NewContactMapping(f.partnerID, f.customerID, "contact-1")
	require.NoError(t, err)
	require.NoError(t, f.mappings.SaveContact(ctx, contact))
	product, err := accounting.NewProductMapping(f.partnerID, f.productID, "200", "OUTPUT")
	require.NoError(t, err)
	require.NoError(t, f.mappings.SaveProduct(ctx, product))
}

func (f *ledgerFixture) addItem(t *testing.T) *LedgerResult {
	t.Helper()
	res, err := f.service.AddLineItem(context.Background(), f.partnerID, f.orderID, f.admin, AddLineItemRequest{
		ProductID: f.productID,
		Quantity:  1,
	})
	require.NoError(t, err)
	return res
}

func (f *ledgerFixture) stored(t *testing.T) *billing.Ledger {
	t.Helper()
	l, err := f.ledgers.FindByOrderID(context.Background(), f.orderID)
	require.NoError(t, err)
	return l
}

func assertTotals(t *testing.T, ledger LedgerResponse, subtotal, tax, total int64) {
	t.Helper()
	assert.True(t, ledger.Subtotal.Equal(decimal.NewFromInt(subtotal)), "subtotal %s", ledger.Subtotal)
	assert.True(t, ledger.Tax.Equal(decimal.NewFromInt(tax)), "tax %s", ledger.Tax)
	assert.True(t, ledger.Total.Equal(decimal.NewFromInt(total)), "total %s", ledger.Total)
}

func TestLedgerService_LineItemTotals(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	ctx := context.Background()

	added := f.addItem(t)
	require.Len(t, added.Ledger.Items, 1)
	assertTotals(t, added.Ledger, 100, 10, 110)
	itemID := added.Ledger.Items[0].ID

	tripled, err := f.service.UpdateQuantity(ctx, f.partnerID, f.orderID, itemID, f.admin, 3)
	require.NoError(t, err)
	assertTotals(t, tripled.Ledger, 300, 30, 330)

	removed, err := f.service.RemoveLineItem(ctx, f.partnerID, f.orderID, itemID, f.admin)
	require.NoError(t, err)
	assert.Empty(t, removed.Ledger.Items)
	assertTotals(t, removed.Ledger, 0, 0, 0)

	assert.Equal(t, []string{
		billing.EventTypeLineItemAdded,
		billing.EventTypeLineItemChanged,
		billing.EventTypeLineItemRemoved,
	}, f.outbox.EventTypes())
}

func TestLedgerService_CommitPriceFromPartialText(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	itemID := f.addItem(t).Ledger.Items[0].ID

	res, err := f.service.CommitPrice(context.Background(), f.partnerID, f.orderID, itemID, f.admin, "12.")
	require.NoError(t, err)
	assert.True(t, res.Ledger.Items[0].UnitPrice.Equal(decimal.NewFromInt(12)))

	res, err = f.service.CommitPrice(context.Background(), f.partnerID, f.orderID, itemID, f.admin, "abc")
	require.NoError(t, err)
	assert.True(t, res.Ledger.Items[0].UnitPrice.IsZero())
}

func TestLedgerService_OnlyAdminsEdit(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	customer := shared.NewActor(f.customerID, shared.ActorRoleCustomer)

	_, err := f.service.AddLineItem(context.Background(), f.partnerID, f.orderID, customer, AddLineItemRequest{ProductID: f.productID})
	assert.ErrorIs(t, err, shared.ErrForbiddenActor)

	// Customers may read their own ledger
	_, err = f.service.Get(context.Background(), f.partnerID, f.orderID, customer)
	assert.NoError(t, err)

	stranger := shared.NewActor(uuid.New(), shared.ActorRoleCustomer)
	_, err = f.service.Get(context.Background(), f.partnerID, f.orderID, stranger)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedgerService_RaiseInvoiceLocksLedger(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	f.mapEverything(t)
	itemID := f.addItem(t).Ledger.Items[0].ID
	ctx := context.Background()

	res, err := f.service.RaiseInvoice(ctx, f.partnerID, f.orderID, f.admin)
	require.NoError(t, err)
	assert.True(t, res.Ledger.Locked)
	assert.Equal(t, "ext-0001", res.Ledger.Invoice.ExternalID)
	assert.Equal(t, "INV-0001", res.Ledger.Invoice.Number)
	assert.Equal(t, string(billing.InvoiceStatusDraft), res.Ledger.Invoice.Status)

	req := f.api.Requests[0]
	assert.Equal(t, "contact-1", req.ContactID)
	assert.Equal(t, f.orderID.String(), req.Reference)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, "200", req.Lines[0].AccountCode)
	assert.Equal(t, "OUTPUT", req.Lines[0].TaxType)

	_, err = f.service.UpdateQuantity(ctx, f.partnerID, f.orderID, itemID, f.admin, 2)
	assert.ErrorIs(t, err, shared.ErrLedgerLocked)

	_, err = f.service.RaiseInvoice(ctx, f.partnerID, f.orderID, f.admin)
	assert.ErrorIs(t, err, shared.ErrDuplicateInvoice)
	assert.Equal(t, 1, f.api.InvoiceCount())
}

func TestLedgerService_RaiseAdoptsInvoiceAlreadyInLedger(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	f.mapEverything(t)
	f.addItem(t)
	ctx := context.Background()

	// an earlier raise reached the ledger but never committed
	_, err := f.api.CreateInvoice(ctx, accounting.InvoiceRequest{ContactID: "contact-1", Reference: f.orderID.String()})
	require.NoError(t, err)
	require.False(t, f.stored(t).IsLocked())

	res, err := f.service.RaiseInvoice(ctx, f.partnerID, f.orderID, f.admin)
	require.NoError(t, err)
	assert.True(t, res.Ledger.Locked)
	assert.Equal(t, "ext-0001", res.Ledger.Invoice.ExternalID)
	assert.Equal(t, "INV-0001", res.Ledger.Invoice.Number)
	assert.Equal(t, 1, f.api.InvoiceCount())
}

func TestLedgerService_RaiseInvoiceReportsEveryMissingMapping(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	f.addItem(t)

	_, err := f.service.RaiseInvoice(context.Background(), f.partnerID, f.orderID, f.admin)

	require.ErrorIs(t, err, shared.ErrIncompleteMapping)
	missing := accounting.MissingEntries(err)
	assert.ElementsMatch(t, []accounting.MissingEntry{
		{Kind: accounting.MissingContact, ID: f.customerID},
		{Kind: accounting.MissingAccountCode, ID: f.productID},
		{Kind: accounting.MissingTaxType, ID: f.productID},
	}, missing)
	assert.Zero(t, f.api.InvoiceCount())
	// A manual raise does not record the failure on the ledger
	assert.Empty(t, f.stored(t).Invoice.LastRaiseError)
}

func TestLedgerService_RaiseRefusedWhenTriggerIsNever(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerNever)
	f.mapEverything(t)
	f.addItem(t)

	_, err := f.service.RaiseInvoice(context.Background(), f.partnerID, f.orderID, f.admin)

	assert.ErrorIs(t, err, shared.ErrInvoicingDisabled)
	assert.Zero(t, f.api.InvoiceCount())
}

func TestLedgerService_RaiseFailsOnEmptyLedger(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	f.mapEverything(t)

	_, err := f.service.RaiseInvoice(context.Background(), f.partnerID, f.orderID, f.admin)

	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestLedgerService_LedgerAPIFailureLeavesLedgerUnlocked(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	f.mapEverything(t)
	f.addItem(t)
	f.api.FailWith(errors.New("ledger unavailable"))

	_, err := f.service.RaiseInvoice(context.Background(), f.partnerID, f.orderID, f.admin)

	require.Error(t, err)
	assert.False(t, f.stored(t).IsLocked())
}

func TestLedgerService_SyncInvoiceStatus(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerManualOnly)
	f.mapEverything(t)
	f.addItem(t)
	ctx := context.Background()

	_, err := f.service.SyncInvoiceStatus(ctx, f.partnerID, f.orderID, f.admin, "paid")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.service.RaiseInvoice(ctx, f.partnerID, f.orderID, f.admin)
	require.NoError(t, err)

	res, err := f.service.SyncInvoiceStatus(ctx, f.partnerID, f.orderID, f.admin, "paid")
	require.NoError(t, err)
	assert.Equal(t, "paid", res.Ledger.Invoice.Status)
	assert.Contains(t, f.outbox.EventTypes(), billing.EventTypeInvoiceStatusChanged)
}

// approvedEvent walks an order to approval and returns the approval event
func approvedEvent(t *testing.T, f *ledgerFixture) *fulfillment.OrderApprovedEvent {
	t.Helper()
	customer := shared.NewActor(f.customerID, shared.ActorRoleCustomer)
	editorID := uuid.New()
	editor := shared.NewActor(editorID, shared.ActorRoleEditor)
	order, err := fulfillment.NewOrder(f.partnerID, uuid.New(), f.customerID, nil, "Brochure", nil, customer)
	require.NoError(t, err)
	order.ID = f.orderID
	require.NoError(t, order.Apply(fulfillment.Accept{EditorID: editorID}, editor))
	require.NoError(t, order.Apply(fulfillment.MarkComplete{}, editor))
	order.ClearDomainEvents()
	require.NoError(t, order.Apply(fulfillment.Approve{}, customer))

	events := order.GetDomainEvents()
	require.Len(t, events, 1)
	approved, ok := events[0].(*fulfillment.OrderApprovedEvent)
	require.True(t, ok)
	return approved
}

func TestInvoiceOnDeliveryHandler_RaisesOnApproval(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerOnDelivered)
	f.mapEverything(t)
	f.addItem(t)
	provider := partner.NewDefaultsProvider(f.settings, partner.Settings{})
	handler := NewInvoiceOnDeliveryHandler(f.service, provider, zap.NewNop())
	event := approvedEvent(t, f)

	require.NoError(t, handler.Handle(context.Background(), event))
	// Redelivery of the same approval is a no-op
	require.NoError(t, handler.Handle(context.Background(), event))

	assert.Equal(t, 1, f.api.InvoiceCount())
	assert.True(t, f.stored(t).IsLocked())
}

func TestInvoiceOnDeliveryHandler_RecordsIncompleteMapping(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerOnDelivered)
	f.addItem(t)
	provider := partner.NewDefaultsProvider(f.settings, partner.Settings{})
	handler := NewInvoiceOnDeliveryHandler(f.service, provider, zap.NewNop())

	err := handler.Handle(context.Background(), approvedEvent(t, f))

	require.NoError(t, err)
	stored := f.stored(t)
	assert.False(t, stored.IsLocked())
	assert.Contains(t, stored.Invoice.LastRaiseError, "accounting mapping incomplete")
	assert.Contains(t, f.outbox.EventTypes(), billing.EventTypeInvoiceRaiseFailed)
	assert.Zero(t, f.api.InvoiceCount())
}

func TestInvoiceOnDeliveryHandler_SkipsOtherTriggers(t *testing.T) {
	for _, trigger := range []partner.InvoiceTrigger{partner.InvoiceTriggerNever, partner.InvoiceTriggerManualOnly} {
		t.Run(string(trigger), func(t *testing.T) {
			f := newLedgerFixture(t, trigger)
			f.mapEverything(t)
			f.addItem(t)
			provider := partner.NewDefaultsProvider(f.settings, partner.Settings{})
			handler := NewInvoiceOnDeliveryHandler(f.service, provider, zap.NewNop())

			require.NoError(t, handler.Handle(context.Background(), approvedEvent(t, f)))
			assert.Zero(t, f.api.InvoiceCount())
		})
	}
}

func TestInvoiceOnDeliveryHandler_LedgerOutageIsRetried(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerOnDelivered)
	f.mapEverything(t)
	f.addItem(t)
	f.api.FailWith(errors.New("ledger unavailable"))
	provider := partner.NewDefaultsProvider(f.settings, partner.Settings{})
	handler := NewInvoiceOnDeliveryHandler(f.service, provider, zap.NewNop())

	err := handler.Handle(context.Background(), approvedEvent(t, f))

	assert.Error(t, err)
}

func TestInvoiceDeadLetterObserver_RecordsFailureForApprovals(t *testing.T) {
	f := newLedgerFixture(t, partner.InvoiceTriggerOnDelivered)
	f.addItem(t)
	observer := NewInvoiceDeadLetterObserver(f.service, zap.NewNop())

	observer.OutboxDeadLettered(context.Background(), &shared.OutboxEntry{
		OrderID:    f.orderID,
		EventID:    uuid.New(),
		EventType:  "OrderAccepted",
		RetryCount: 5,
		LastError:  "ledger unavailable",
	})
	assert.Empty(t, f.stored(t).Invoice.LastRaiseError)

	observer.OutboxDeadLettered(context.Background(), &shared.OutboxEntry{
		OrderID:    f.orderID,
		EventID:    uuid.New(),
		EventType:  fulfillment.EventTypeOrderApproved,
		RetryCount: 5,
		LastError:  "ledger unavailable",
	})
	assert.Equal(t,
		"automatic invoice raise gave up after 5 attempts: ledger unavailable",
		f.stored(t).Invoice.LastRaiseError)
}

package handler

import (
	"context"
	"net/http"
	"testing"

	billingapp "github.com/editdesk/backend/internal/application/billing"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) result(args mock.Arguments) (*billingapp.LedgerResult, error) {
	if r := args.Get(0); r != nil {
		return r.(*billingapp.LedgerResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) Get(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResponse, error) {
	args := m.Called(ctx, partnerID, orderID, actor)
	if r := args.Get(0); r != nil {
		return r.(*billingapp.LedgerResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) AddLineItem(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req billingapp.AddLineItemRequest) (*billingapp.LedgerResult, error) {
	return m.result(m.Called(ctx, partnerID, orderID, actor, req))
}

func (m *mockLedger) UpdateQuantity(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor, quantity int) (*billingapp.LedgerResult, error) {
	return m.result(m.Called(ctx, partnerID, orderID, itemID, actor, quantity))
}

func (m *mockLedger) CommitPrice(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor, raw string) (*billingapp.LedgerResult, error) {
	return m.result(m.Called(ctx, partnerID, orderID, itemID, actor, raw))
}

func (m *mockLedger) RemoveLineItem(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
	return m.result(m.Called(ctx, partnerID, orderID, itemID, actor))
}

func (m *mockLedger) SyncInvoiceStatus(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, status string) (*billingapp.LedgerResult, error) {
	return m.result(m.Called(ctx, partnerID, orderID, actor, status))
}

func (m *mockLedger) RaiseInvoice(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*billingapp.LedgerResult, error) {
	return m.result(m.Called(ctx, partnerID, orderID, actor))
}

func setupLedgerRouter(l Ledger) *gin.Engine {
	h := NewLedgerHandler(l)
	r := newTestRouter()
	r.GET("/orders/:id/ledger", h.Get)
	r.POST("/orders/:id/ledger/items", h.AddItem)
	r.PATCH("/orders/:id/ledger/items/:itemId/quantity", h.UpdateQuantity)
	r.PATCH("/orders/:id/ledger/items/:itemId/price", h.UpdatePrice)
	r.DELETE("/orders/:id/ledger/items/:itemId", h.RemoveItem)
	r.POST("/orders/:id/invoice", h.RaiseInvoice)
	r.PUT("/orders/:id/invoice/status", h.SyncInvoiceStatus)
	return r
}

func ledgerResult(orderID uuid.UUID, total string) *billingapp.LedgerResult {
	return &billingapp.LedgerResult{Ledger: billingapp.LedgerResponse{
		OrderID:  orderID,
		Currency: "EUR",
		Total:    decimal.RequireFromString(total),
	}}
}

func TestLedgerHandler_Get(t *testing.T) {
	l := new(mockLedger)
	orderID := uuid.New()
	resp := ledgerResult(orderID, "120.00").Ledger
	l.On("Get", mock.Anything, testPartnerID, orderID, testAdmin).Return(&resp, nil)

	w := doJSON(setupLedgerRouter(l), http.MethodGet, "/orders/"+orderID.String()+"/ledger", testAdmin, "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, "120", data["total"])
}

func TestLedgerHandler_AddItem(t *testing.T) {
	l := new(mockLedger)
	orderID, productID := uuid.New(), uuid.New()
	l.On("AddLineItem", mock.Anything, testPartnerID, orderID, testAdmin, billingapp.AddLineItemRequest{ProductID: productID, Quantity: 3}).
		Return(ledgerResult(orderID, "30"), nil)

	w := doJSON(setupLedgerRouter(l), http.MethodPost, "/orders/"+orderID.String()+"/ledger/items", testAdmin,
		`{"product_id":"`+productID.String()+`","quantity":3}`)

	assert.Equal(t, http.StatusOK, w.Code)
	l.AssertExpectations(t)
}

func TestLedgerHandler_UpdateQuantity(t *testing.T) {
	l := new(mockLedger)
	orderID, itemID := uuid.New(), uuid.New()
	l.On("UpdateQuantity", mock.Anything, testPartnerID, orderID, itemID, testAdmin, 0).
		Return(ledgerResult(orderID, "10"), nil)

	w := doJSON(setupLedgerRouter(l), http.MethodPatch,
		"/orders/"+orderID.String()+"/ledger/items/"+itemID.String()+"/quantity", testAdmin, `{"quantity":0}`)

	assert.Equal(t, http.StatusOK, w.Code)
	l.AssertExpectations(t)
}

func TestLedgerHandler_UpdatePrice(t *testing.T) {
	orderID, itemID := uuid.New(), uuid.New()
	path := "/orders/" + orderID.String() + "/ledger/items/" + itemID.String() + "/price"

	t.Run("raw text is passed through", func(t *testing.T) {
		l := new(mockLedger)
		l.On("CommitPrice", mock.Anything, testPartnerID, orderID, itemID, testAdmin, "12.").
			Return(ledgerResult(orderID, "12"), nil)

		w := doJSON(setupLedgerRouter(l), http.MethodPatch, path, testAdmin, `{"price":"12."}`)

		assert.Equal(t, http.StatusOK, w.Code)
		l.AssertExpectations(t)
	})

	t.Run("locked after invoicing", func(t *testing.T) {
		l := new(mockLedger)
		l.On("CommitPrice", mock.Anything, testPartnerID, orderID, itemID, testAdmin, "15").
			Return(nil, shared.ErrLedgerLocked)

		w := doJSON(setupLedgerRouter(l), http.MethodPatch, path, testAdmin, `{"price":"15"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeLedgerLocked, decode(t, w).Error.Code)
	})

	t.Run("invalid item id", func(t *testing.T) {
		l := new(mockLedger)

		w := doJSON(setupLedgerRouter(l), http.MethodPatch,
			"/orders/"+orderID.String()+"/ledger/items/nope/price", testAdmin, `{"price":"15"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		l.AssertNotCalled(t, "CommitPrice")
	})
}

func TestLedgerHandler_RemoveItem(t *testing.T) {
	l := new(mockLedger)
	orderID, itemID := uuid.New(), uuid.New()
	result := ledgerResult(orderID, "0")
	result.Degraded = true
	l.On("RemoveLineItem", mock.Anything, testPartnerID, orderID, itemID, testAdmin).Return(result, nil)

	w := doJSON(setupLedgerRouter(l), http.MethodDelete,
		"/orders/"+orderID.String()+"/ledger/items/"+itemID.String(), testAdmin, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Dispatch-Degraded"))
}

func TestLedgerHandler_RaiseInvoice(t *testing.T) {
	orderID := uuid.New()
	path := "/orders/" + orderID.String() + "/invoice"

	t.Run("raised", func(t *testing.T) {
		l := new(mockLedger)
		l.On("RaiseInvoice", mock.Anything, testPartnerID, orderID, testAdmin).Return(ledgerResult(orderID, "50"), nil)

		w := doJSON(setupLedgerRouter(l), http.MethodPost, path, testAdmin, "")

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		l := new(mockLedger)
		l.On("RaiseInvoice", mock.Anything, testPartnerID, orderID, testAdmin).Return(nil, shared.ErrDuplicateInvoice)

		w := doJSON(setupLedgerRouter(l), http.MethodPost, path, testAdmin, "")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeDuplicateInvoice, decode(t, w).Error.Code)
	})

	t.Run("incomplete mapping lists missing entries", func(t *testing.T) {
		l := new(mockLedger)
		missing := []map[string]string{{"kind": "contact", "id": uuid.NewString()}}
		l.On("RaiseInvoice", mock.Anything, testPartnerID, orderID, testAdmin).
			Return(nil, shared.ErrIncompleteMapping.WithDetail("missing", missing))

		w := doJSON(setupLedgerRouter(l), http.MethodPost, path, testAdmin, "")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeIncompleteMapping, resp.Error.Code)
		assert.Len(t, resp.Error.Details["missing"], 1)
	})
}

func TestLedgerHandler_SyncInvoiceStatus(t *testing.T) {
	orderID := uuid.New()
	path := "/orders/" + orderID.String() + "/invoice/status"

	t.Run("paid", func(t *testing.T) {
		l := new(mockLedger)
		l.On("SyncInvoiceStatus", mock.Anything, testPartnerID, orderID, testAdmin, "paid").Return(ledgerResult(orderID, "50"), nil)

		w := doJSON(setupLedgerRouter(l), http.MethodPut, path, testAdmin, `{"status":"paid"}`)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		l := new(mockLedger)

		w := doJSON(setupLedgerRouter(l), http.MethodPut, path, testAdmin, `{"status":"refunded"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
		l.AssertNotCalled(t, "SyncInvoiceStatus")
	})
}

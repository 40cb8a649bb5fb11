package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/editdesk/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(name string, price int64) billing.CatalogEntry {
	return billing.CatalogEntry{
		ProductID: uuid.New(),
		Name:      name,
		UnitPrice: decimal.NewFromInt(price),
		TaxRate:   decimal.NewFromInt(10),
	}
}

func TestGormLedgerRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(testutil.NewSQLiteDB(t, models.All()...))

	ledger, err := billing.NewLedger(testutil.TestPartnerID(), uuid.New(), uuid.New(), "EUR")
	require.NoError(t, err)
	color, err := ledger.AddLineItem(entry("Color grade", 120), 1, partnerAdmin)
	require.NoError(t, err)
	_, err = ledger.AddLineItem(entry("Sound mix", 80), 2, partnerAdmin)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, ledger))

	err = repo.Create(ctx, ledger)
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

	stored, err := repo.FindByOrderID(ctx, ledger.OrderID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.True(t, stored.Totals().Total.Amount().Equal(ledger.Totals().Total.Amount()))

	t.Run("removed and changed items are persisted", func(t *testing.T) {
		require.NoError(t, stored.UpdateQuantity(color.ID, 3, partnerAdmin))
		require.NoError(t, stored.RemoveLineItem(stored.Items[1].ID, partnerAdmin))
		require.NoError(t, repo.SaveWithLock(ctx, stored))
		assert.Equal(t, 2, stored.Version)

		reloaded, err := repo.FindByOrderID(ctx, ledger.OrderID)
		require.NoError(t, err)
		require.Len(t, reloaded.Items, 1)
		assert.Equal(t, 3, reloaded.Items[0].Quantity)
		assert.True(t, decimal.NewFromInt(120).Equal(reloaded.Items[0].UnitPrice))
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale, err := repo.FindByOrderID(ctx, ledger.OrderID)
		require.NoError(t, err)
		stale.Version = 1
		err = repo.SaveWithLock(ctx, stale)
		assert.True(t, errors.Is(err, shared.ErrConflictingTransition))
	})

	t.Run("missing ledger", func(t *testing.T) {
		_, err := repo.FindByOrderID(ctx, uuid.New())
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestGormLedgerRepository_FindByOrderIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(testutil.NewSQLiteDB(t, models.All()...))

	var orderIDs []uuid.UUID
	for i := 0; i < 2; i++ {
		ledger, err := billing.NewLedger(testutil.TestPartnerID(), uuid.New(), uuid.New(), "USD")
		require.NoError(t, err)
		_, err = ledger.AddLineItem(entry("Trim", 50), i+1, partnerAdmin)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, ledger))
		orderIDs = append(orderIDs, ledger.OrderID)
	}

	got, err := repo.FindByOrderIDs(ctx, append(orderIDs, uuid.New()))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Contains(t, got, orderIDs[1])
	assert.Equal(t, 2, got[orderIDs[1]].Items[0].Quantity)

	empty, err := repo.FindByOrderIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

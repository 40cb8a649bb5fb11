package billing

import (
	"testing"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_EntryUsesVariationPriceAndName(t *testing.T) {
	p, err := NewProduct(uuid.New(), "Photo retouch", decimal.NewFromInt(100), decimal.NewFromInt(10))
	require.NoError(t, err)
	express := decimal.NewFromInt(150)
	v, err := p.AddVariation("Express", &express)
	require.NoError(t, err)
	_, err = p.AddVariation("Standard", nil)
	require.NoError(t, err)

	base, err := p.Entry(nil)
	require.NoError(t, err)
	assert.Equal(t, "Photo retouch", base.Name)
	assert.True(t, base.UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.Nil(t, base.VariationID)

	entry, err := p.Entry(&v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Photo retouch - Express", entry.Name)
	assert.True(t, entry.UnitPrice.Equal(express))
	assert.True(t, entry.TaxRate.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, v.ID, *entry.VariationID)

	standardID := p.Variations[1].ID
	standard, err := p.Entry(&standardID)
	require.NoError(t, err)
	assert.True(t, standard.UnitPrice.Equal(decimal.NewFromInt(100)))
}

func TestProduct_EntryUnknownVariation(t *testing.T) {
	p, err := NewProduct(uuid.New(), "Photo retouch", decimal.NewFromInt(100), decimal.Zero)
	require.NoError(t, err)
	missing := uuid.New()

	_, err = p.Entry(&missing)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProduct_InactiveCannotBeSelected(t *testing.T) {
	p, err := NewProduct(uuid.New(), "Photo retouch", decimal.NewFromInt(100), decimal.Zero)
	require.NoError(t, err)
	p.Active = false

	_, err = p.Entry(nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNewProduct_Validation(t *testing.T) {
	partnerID := uuid.New()
	tests := []struct {
		name  string
		pname string
		price decimal.Decimal
		rate  decimal.Decimal
	}{
		{"empty name", "  ", decimal.NewFromInt(1), decimal.Zero},
		{"negative price", "Cut", decimal.NewFromInt(-1), decimal.Zero},
		{"negative rate", "Cut", decimal.NewFromInt(1), decimal.NewFromInt(-5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProduct(partnerID, tt.pname, tt.price, tt.rate)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}
}

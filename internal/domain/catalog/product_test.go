package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(t *testing.T, price string, qty int) *Product {
	t.Helper()
	p, err := NewProduct(shared.Translations{shared.LocaleEN: "Widget"}, nil, decimal.RequireFromString(price), qty)
	require.NoError(t, err)
	return p
}

func TestNewProduct(t *testing.T) {
	t.Run("creates active product", func(t *testing.T) {
		p := newTestProduct(t, "100.00", 5)
		assert.Equal(t, ProductStatusActive, p.Status)
		assert.Equal(t, 5, p.Quantity)
		assert.Equal(t, 1, p.GetVersion())
		assert.NotEmpty(t, p.ID)
	})

	t.Run("requires default-locale name", func(t *testing.T) {
		_, err := NewProduct(shared.Translations{shared.LocaleAR: "أداة"}, nil, decimal.NewFromInt(1), 1)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		_, err := NewProduct(shared.Translations{shared.LocaleEN: "Widget"}, nil, decimal.NewFromInt(1), -1)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestProduct_EffectivePrice(t *testing.T) {
	p := newTestProduct(t, "50.00", 1)
	assert.True(t, p.EffectivePrice().Equal(decimal.RequireFromString("50")))

	d := decimal.RequireFromString("40.00")
	require.NoError(t, p.SetDiscountedPrice(&d))
	assert.True(t, p.EffectivePrice().Equal(d))

	high := decimal.RequireFromString("60.00")
	assert.ErrorIs(t, p.SetDiscountedPrice(&high), shared.ErrInvalidInput)

	// a stale discount that is no longer lower than price is ignored
	p.Price = decimal.RequireFromString("30.00")
	assert.True(t, p.EffectivePrice().Equal(decimal.RequireFromString("30")))
}

func TestProduct_Decrement(t *testing.T) {
	t.Run("fails when exceeding stock", func(t *testing.T) {
		p := newTestProduct(t, "10", 1)
		err := p.Decrement(2)
		require.ErrorIs(t, err, shared.ErrInsufficientStock)

		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "Widget", de.Field)
		assert.Equal(t, 1, p.Quantity)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		p := newTestProduct(t, "10", 1)
		assert.ErrorIs(t, p.Decrement(0), shared.ErrInvalidInput)
	})

	t.Run("auto-deactivates at zero", func(t *testing.T) {
		p := newTestProduct(t, "10", 2)
		require.NoError(t, p.Decrement(2))
		assert.Equal(t, 0, p.Quantity)
		assert.Equal(t, ProductStatusInactive, p.Status)
		assert.True(t, p.AutoDeactivated)
	})

	t.Run("does not mark admin-deactivated product", func(t *testing.T) {
		p := newTestProduct(t, "10", 1)
		require.NoError(t, p.SetStatus(ProductStatusInactive))
		require.NoError(t, p.Decrement(1))
		assert.False(t, p.AutoDeactivated)
	})
}

func TestProduct_RestockPolicies(t *testing.T) {
	soldOut := func(t *testing.T) *Product {
		p := newTestProduct(t, "10", 1)
		require.NoError(t, p.Decrement(1))
		return p
	}
	adminOff := func(t *testing.T) *Product {
		p := newTestProduct(t, "10", 0)
		require.NoError(t, p.SetStatus(ProductStatusInactive))
		return p
	}

	tests := []struct {
		name       string
		product    func(t *testing.T) *Product
		policy     ReactivationPolicy
		wantStatus ProductStatus
	}{
		{"auto reactivates ledger deactivation", soldOut, ReactivateAuto, ProductStatusActive},
		{"auto keeps admin deactivation", adminOff, ReactivateAuto, ProductStatusInactive},
		{"never keeps ledger deactivation", soldOut, ReactivateNever, ProductStatusInactive},
		{"always overrides admin deactivation", adminOff, ReactivateAlways, ProductStatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.product(t)
			require.NoError(t, p.Restock(2, tt.policy))
			assert.Equal(t, 2, p.Quantity)
			assert.Equal(t, tt.wantStatus, p.Status)
			if tt.wantStatus == ProductStatusActive {
				assert.False(t, p.AutoDeactivated)
			}
		})
	}
}

func TestParseReactivationPolicy(t *testing.T) {
	p, err := ParseReactivationPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReactivateAuto, p)

	p, err = ParseReactivationPolicy("always")
	require.NoError(t, err)
	assert.Equal(t, ReactivateAlways, p)

	_, err = ParseReactivationPolicy("sometimes")
	assert.Error(t, err)
}

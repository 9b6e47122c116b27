package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name string
		unit string
		qty  int
		want string
	}{
		{"whole amounts", "100", 2, "200.00"},
		{"discounted price", "40.00", 1, "40.00"},
		{"rounds half up", "0.335", 3, "1.01"},
		{"rounds fractional cents", "19.999", 1, "20.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineTotal(decimal.RequireFromString(tt.unit), tt.qty)
			assert.Equal(t, tt.want, FormatAmount(got))
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	t.Run("converts two decimal places", func(t *testing.T) {
		cents, err := ToMinorUnits(decimal.RequireFromString("240.00"))
		require.NoError(t, err)
		assert.Equal(t, int64(24000), cents)
	})

	t.Run("rejects sub-cent amounts", func(t *testing.T) {
		_, err := ToMinorUnits(decimal.RequireFromString("1.005"))
		assert.Error(t, err)
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		_, err := ToMinorUnits(decimal.NewFromInt(-1))
		assert.Error(t, err)
	})
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(24000).Equal(decimal.RequireFromString("240")))
	assert.Equal(t, "0.05", FormatAmount(FromMinorUnits(5)))
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" USD ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)
	assert.Equal(t, "USD", c.Upper())

	_, err = ParseCurrency("dollars")
	assert.Error(t, err)
}

package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurrency(t *testing.T) {
	t.Run("resolves scale for known code", func(t *testing.T) {
		c, err := NewCurrency(" aud ")
		require.NoError(t, err)
		assert.Equal(t, "AUD", c.Code())
		assert.Equal(t, int32(2), c.Scale())
	})

	t.Run("zero minor units", func(t *testing.T) {
		c, err := NewCurrency("JPY")
		require.NoError(t, err)
		assert.Equal(t, int32(0), c.Scale())
	})

	t.Run("rejects unknown code", func(t *testing.T) {
		_, err := NewCurrency("XXX")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported currency")
	})

	t.Run("must panics on unknown code", func(t *testing.T) {
		assert.Panics(t, func() { MustCurrency("") })
	})
}

func TestCurrency_Round(t *testing.T) {
	aud := MustCurrency("AUD")

	tests := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"-10.005", "-10.01"},
		{"3", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := aud.Round(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestCurrency_Comparisons(t *testing.T) {
	aud := DefaultCurrency()

	assert.True(t, aud.Equal(decimal.RequireFromString("10.001"), decimal.RequireFromString("10")))
	assert.False(t, aud.Equal(decimal.RequireFromString("10.01"), decimal.RequireFromString("10")))
	assert.True(t, aud.IsZero(decimal.RequireFromString("0.004")))
	assert.False(t, aud.IsPositive(decimal.RequireFromString("0.004")))
	assert.True(t, aud.IsPositive(decimal.RequireFromString("0.005")))
	assert.False(t, aud.IsZeroValue())
	assert.True(t, Currency{}.IsZeroValue())
}

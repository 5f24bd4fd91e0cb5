package catalog

import (
	"testing"

	"github.com/pos/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	t.Run("creates product", func(t *testing.T) {
		p, err := NewProduct(" cof-001 ", "Flat White", decimal.RequireFromString("4.50"))

		require.NoError(t, err)
		assert.Equal(t, "COF-001", p.SKU)
		assert.Equal(t, "Flat White", p.Name)
		assert.True(t, p.Price.Equal(decimal.RequireFromString("4.5")))
		assert.True(t, p.Active)
	})

	t.Run("rounds price to four places", func(t *testing.T) {
		p, err := NewProduct("TEA", "Tea", decimal.RequireFromString("1.234567"))

		require.NoError(t, err)
		assert.Equal(t, "1.2346", p.Price.String())
	})

	tests := []struct {
		name  string
		sku   string
		pname string
		price string
	}{
		{"empty sku", "", "Tea", "1"},
		{"bad sku characters", "TEA 01", "Tea", "1"},
		{"empty name", "TEA", " ", "1"},
		{"negative price", "TEA", "Tea", "-0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProduct(tt.sku, tt.pname, decimal.RequireFromString(tt.price))
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}
}

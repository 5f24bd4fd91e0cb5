package tenancy

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		business   string
		wantPrefix string
	}{
		{"spaces removed", "My Shop", "myshop_"},
		{"accents stripped", "Café Crème", "cafecreme_"},
		{"digits kept", "24/7 Market", "247market_"},
		{"punctuation only", "!!!", "tenant_"},
		{"non latin only", "東京", "tenant_"},
		{"long name truncated", "The Extraordinarily Long Business Name", "theextraordinarilylo_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateIdentifier(tt.business)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(id, tt.wantPrefix), "got %q", id)
			assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]+_[a-z0-9]{8}$`), id)
			assert.NoError(t, ValidateIdentifier(id))
		})
	}
}

func TestGenerateIdentifier_MyShopPattern(t *testing.T) {
	id, err := GenerateIdentifier("My Shop")
	require.NoError(t, err)
	assert.Regexp(t, `^myshop_[a-z0-9]{8}$`, id)
}

func TestGenerateIdentifier_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := GenerateIdentifier("Acme")
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate identifier %s", id)
		seen[id] = struct{}{}
	}
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"acme_ab12cd34", "tenant_x", "a", "247market_00000000"}
	for _, id := range valid {
		assert.NoError(t, ValidateIdentifier(id), id)
	}

	invalid := []string{
		"",
		"   ",
		DefaultTenantKey,
		"Acme_ab12cd34",
		"_acme",
		"acme-shop",
		"acme;drop database",
		strings.Repeat("a", 64),
	}
	for _, id := range invalid {
		err := ValidateIdentifier(id)
		assert.ErrorIs(t, err, ErrInvalidTenantIdentifier, "%q", id)
	}
}

package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add products table", "add_products_table"},
		{"Add-Products-Table", "add_products_table"},
		{"ADD_PRODUCTS_TABLE", "add_products_table"},
		{"add__products__table", "add_products_table"},
		{"Add Products 123", "add_products_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope(" Tenant ")
	require.NoError(t, err)
	assert.Equal(t, ScopeTenant, s)

	s, err = ParseScope("master")
	require.NoError(t, err)
	assert.Equal(t, ScopeMaster, s)

	_, err = ParseScope("shared")
	assert.Error(t, err)
}

func TestCreateMigration(t *testing.T) {
	root := t.TempDir()

	mf, err := CreateMigration(root, ScopeTenant, "add stock levels")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.Equal(t, filepath.Join(root, "tenant"), filepath.Dir(mf.UpPath))

	upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
	downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
	assert.Equal(t, upBase, downBase)
	assert.True(t, strings.HasSuffix(upBase, "_add_stock_levels"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Scope: tenant")
	assert.Contains(t, string(up), "Runs once per tenant database")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(rollback)")
}

func TestCreateMigration_MasterHasNoTenantNote(t *testing.T) {
	mf, err := CreateMigration(t.TempDir(), ScopeMaster, "add plans")
	require.NoError(t, err)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.NotContains(t, string(up), "tenant database")
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), ScopeMaster, "!!!")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"tenant/000002_add_stock.up.sql":         {Data: []byte("--")},
		"tenant/000002_add_stock.down.sql":       {Data: []byte("--")},
		"tenant/000001_init.up.sql":              {Data: []byte("--")},
		"tenant/000001_init.down.sql":            {Data: []byte("--")},
		"tenant/README.md":                       {Data: []byte("docs")},
		"tenant/subdir.up.sql/keep":              {Data: []byte("")},
		"master/000001_create_businesses.up.sql": {Data: []byte("--")},
	}

	names, err := ListMigrations(fsys, "tenant")
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_stock"}, names)

	missing, err := ListMigrations(fsys, "archive")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

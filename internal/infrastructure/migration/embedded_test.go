package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pos/backoffice/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_Parse(t *testing.T) {
	for _, dir := range []string{migrations.MasterDir, migrations.TenantDir} {
		t.Run(dir, func(t *testing.T) {
			src, err := iofs.New(migrations.FS, dir)
			require.NoError(t, err)
			t.Cleanup(func() { _ = src.Close() })

			first, err := src.First()
			require.NoError(t, err)
			assert.NotZero(t, first)

			names, err := ListMigrations(migrations.FS, dir)
			require.NoError(t, err)
			require.NotEmpty(t, names)

			for _, name := range names {
				_, err := fs.Stat(migrations.FS, dir+"/"+name+".down.sql")
				assert.NoError(t, err, "missing down migration for %s", name)
			}
		})
	}
}

func TestEmbeddedMigrations_TenantTablesHaveNoTenantColumn(t *testing.T) {
	names, err := ListMigrations(migrations.FS, migrations.TenantDir)
	require.NoError(t, err)

	for _, name := range names {
		body, err := fs.ReadFile(migrations.FS, migrations.TenantDir+"/"+name+".up.sql")
		require.NoError(t, err)
		assert.NotContains(t, strings.ToLower(string(body)), "tenant_id", name)
	}
}

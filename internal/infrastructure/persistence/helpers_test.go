package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pos/backoffice/internal/infrastructure/persistence/models"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openSQLite opens a file-backed sqlite database with the given tables.
func openSQLite(t *testing.T, path string, tables ...any) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(tables...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newMasterDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openSQLite(t, filepath.Join(t.TempDir(), "master.db"), models.MasterModels()...)
}

// newTenantRouting builds a routing source whose tenant pools are sqlite
// files carrying the tenant tables.
func newTenantRouting(t *testing.T) *tenancy.RoutingSource {
	t.Helper()
	dir := t.TempDir()
	master := &tenancy.Pool{Name: MasterPoolName, DB: openSQLite(t, filepath.Join(dir, "master.db"), models.MasterModels()...)}

	registry := tenancy.NewRegistry(tenancy.PoolFactoryFunc(func(_ context.Context, tenantID string) (*tenancy.Pool, error) {
		db, err := gorm.Open(sqlite.Open(filepath.Join(dir, tenantID+".db")), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(models.TenantModels()...); err != nil {
			return nil, err
		}
		return &tenancy.Pool{Name: "tenant-pool-" + tenantID, TenantID: tenantID, DB: db}, nil
	}), nil)
	t.Cleanup(func() { _ = registry.Close() })

	return tenancy.NewRoutingSource(master, registry)
}

package tenancy

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type note struct {
	ID   uint `gorm:"primaryKey"`
	Body string
}

func openSQLite(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&note{}))
	return db
}

// sqliteFactory opens one sqlite file per tenant in a temp dir and counts
// how many pools it has built.
type sqliteFactory struct {
	t     *testing.T
	dir   string
	calls atomic.Int32
}

func newSQLiteFactory(t *testing.T) *sqliteFactory {
	return &sqliteFactory{t: t, dir: t.TempDir()}
}

func (f *sqliteFactory) Open(_ context.Context, tenantID string) (*Pool, error) {
	f.calls.Add(1)
	db, err := gorm.Open(sqlite.Open(filepath.Join(f.dir, tenantID+".db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&note{}); err != nil {
		return nil, err
	}
	return &Pool{Name: "tenant-pool-" + tenantID, TenantID: tenantID, DB: db}, nil
}

func newMasterPool(t *testing.T) *Pool {
	t.Helper()
	db := openSQLite(t, filepath.Join(t.TempDir(), "master.db"))
	p := &Pool{Name: "master", DB: db}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingSource_MasterOnlyWithoutTenant(t *testing.T) {
	master := newMasterPool(t)
	factory := newSQLiteFactory(t)
	reg := NewRegistry(factory, nil)
	t.Cleanup(func() { _ = reg.Close() })
	src := NewRoutingSource(master, reg)

	ctx := context.Background()
	p, err := src.Pool(ctx)
	require.NoError(t, err)
	assert.Same(t, master, p)

	p, err = src.Pool(WithTenant(ctx, "acme_ab12cd34"))
	require.NoError(t, err)
	assert.NotSame(t, master, p)
	assert.Equal(t, "acme_ab12cd34", p.TenantID)

	p, err = src.Pool(WithoutTenant(WithTenant(ctx, "acme_ab12cd34")))
	require.NoError(t, err)
	assert.Same(t, master, p)

	assert.Equal(t, int32(1), factory.calls.Load())
}

func TestRoutingSource_NoFallbackOnRegistryError(t *testing.T) {
	master := newMasterPool(t)
	cause := errors.New("database unreachable")
	reg := NewRegistry(PoolFactoryFunc(func(context.Context, string) (*Pool, error) {
		return nil, cause
	}), nil)
	src := NewRoutingSource(master, reg)

	db, err := src.DB(WithTenant(context.Background(), "acme_ab12cd34"))
	assert.Nil(t, db)
	assert.ErrorIs(t, err, cause)
}

func TestRoutingSource_TenantIsolation(t *testing.T) {
	master := newMasterPool(t)
	reg := NewRegistry(newSQLiteFactory(t), nil)
	t.Cleanup(func() { _ = reg.Close() })
	src := NewRoutingSource(master, reg)

	ctxA := WithTenant(context.Background(), "tenant_a")
	ctxB := WithTenant(context.Background(), "tenant_b")

	dbA, err := src.DB(ctxA)
	require.NoError(t, err)
	require.NoError(t, dbA.Create(&note{Body: "written by A"}).Error)

	dbB, err := src.DB(ctxB)
	require.NoError(t, err)
	var fromB []note
	require.NoError(t, dbB.Find(&fromB).Error)
	assert.Empty(t, fromB)

	masterDB, err := src.DB(context.Background())
	require.NoError(t, err)
	var fromMaster []note
	require.NoError(t, masterDB.Find(&fromMaster).Error)
	assert.Empty(t, fromMaster)

	dbA, err = src.DB(ctxA)
	require.NoError(t, err)
	var fromA []note
	require.NoError(t, dbA.Find(&fromA).Error)
	require.Len(t, fromA, 1)
	assert.Equal(t, "written by A", fromA[0].Body)
}

func TestStaticSource(t *testing.T) {
	master := newMasterPool(t)
	src := NewStaticSource(master)

	db, err := src.DB(WithTenant(context.Background(), "acme_ab12cd34"))
	require.NoError(t, err)
	require.NoError(t, db.Create(&note{Body: "global"}).Error)

	var count int64
	require.NoError(t, master.DB.Model(&note{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

package persistence

import (
	"context"

	"github.com/pos/backoffice/internal/infrastructure/config"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"gorm.io/driver/postgres"
)

// TenantPoolFactory builds tenant pools from the tenancy URL template.
// It implements tenancy.PoolFactory.
type TenantPoolFactory struct {
	cfg  config.TenancyConfig
	opts PoolOptions
}

// NewTenantPoolFactory creates a TenantPoolFactory.
func NewTenantPoolFactory(cfg config.TenancyConfig, opts PoolOptions) *TenantPoolFactory {
	return &TenantPoolFactory{cfg: cfg, opts: opts}
}

// Open connects to tenantID's database. The tenant database must exist.
func (f *TenantPoolFactory) Open(ctx context.Context, tenantID string) (*tenancy.Pool, error) {
	if err := tenancy.ValidateIdentifier(tenantID); err != nil {
		return nil, err
	}
	dsn, err := f.cfg.TenantDSN(tenantID)
	if err != nil {
		return nil, err
	}
	return OpenPool(ctx, postgres.Open(dsn), f.cfg.PoolName(tenantID), tenantID, tenantID, f.Limits(), f.opts)
}

// Limits returns the limits applied to every tenant pool.
func (f *TenantPoolFactory) Limits() PoolLimits {
	return PoolLimits{
		MaxOpenConns:    f.cfg.MaxOpenConns,
		MaxIdleConns:    f.cfg.MaxIdleConns,
		ConnMaxLifetime: f.cfg.ConnMaxLifetimeDuration(),
		ConnMaxIdleTime: f.cfg.ConnMaxIdleTimeDuration(),
	}
}

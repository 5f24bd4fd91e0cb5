// Package persistence opens the master and tenant connection pools and
// implements the repositories on top of them.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/pos/backoffice/internal/infrastructure/config"
	"github.com/pos/backoffice/internal/infrastructure/logger"
	"github.com/pos/backoffice/internal/infrastructure/telemetry"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MasterPoolName names the master pool in logs, spans and pg_stat_activity.
const MasterPoolName = "master"

// PoolLimits are the database/sql limits applied to a pool.
type PoolLimits struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// PoolOptions carries the instrumentation shared by every pool.
// Both fields may be nil.
type PoolOptions struct {
	Logger  *logger.GormLogger
	Tracing *telemetry.DBTracingPlugin
}

// OpenMasterPool connects to the master database.
func OpenMasterPool(ctx context.Context, cfg *config.DatabaseConfig, opts PoolOptions) (*tenancy.Pool, error) {
	limits := PoolLimits{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTime) * time.Minute,
	}
	return OpenPool(ctx, postgres.Open(cfg.DSN()), MasterPoolName, "", cfg.DBName, limits, opts)
}

// OpenPool opens a gorm pool over dialector, applies limits and
// instrumentation, and pings it. tenantID is empty for the master pool.
func OpenPool(ctx context.Context, dialector gorm.Dialector, name, tenantID, database string, limits PoolLimits, opts PoolOptions) (*tenancy.Pool, error) {
	var gl gormlogger.Interface = gormlogger.Default.LogMode(gormlogger.Silent)
	if opts.Logger != nil {
		gl = opts.Logger.ForPool(name)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gl,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if limits.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(limits.MaxOpenConns)
	}
	if limits.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(limits.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(limits.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(limits.ConnMaxIdleTime)

	if err := opts.Tracing.Instrument(db, database, name); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to instrument pool %s: %w", name, err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &tenancy.Pool{Name: name, TenantID: tenantID, DB: db}, nil
}

// Ping checks that the pool can reach its database.
func Ping(ctx context.Context, pool *tenancy.Pool) error {
	sqlDB, err := pool.SQL()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

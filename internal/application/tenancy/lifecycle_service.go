// Package tenancy orchestrates tenant databases: provisioning, schema
// updates across tenants and pool warm-up.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pos/backoffice/internal/infrastructure/telemetry"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DatabaseProvisioner creates a tenant's physical database.
type DatabaseProvisioner interface {
	// EnsureDatabase creates the database unless it exists; created reports
	// which happened.
	EnsureDatabase(ctx context.Context, tenantID string) (created bool, err error)
}

// SchemaMigrator brings one tenant database to the latest schema. Having
// nothing to apply is success.
type SchemaMigrator interface {
	MigrateTenant(ctx context.Context, pool *tenancy.Pool) error
}

// TenantDirectory lists every tenant known to the master registry.
type TenantDirectory interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// SchemaUpdateRecorder observes per-tenant schema updates.
type SchemaUpdateRecorder interface {
	RecordSchemaUpdate(ctx context.Context, tenantID string, elapsed time.Duration, err error)
}

// LifecycleConfig controls startup behaviour.
type LifecycleConfig struct {
	UpdateSchemaOnStartup bool
	WarmPoolsOnStartup    bool
	WarmPoolConcurrency   int
}

// LifecycleService provisions tenants and runs administrative schema updates.
type LifecycleService struct {
	registry    *tenancy.Registry
	provisioner DatabaseProvisioner
	migrator    SchemaMigrator
	directory   TenantDirectory
	recorder    SchemaUpdateRecorder
	config      LifecycleConfig
	logger      *zap.Logger
}

// NewLifecycleService creates a LifecycleService. recorder may be nil.
func NewLifecycleService(
	registry *tenancy.Registry,
	provisioner DatabaseProvisioner,
	migrator SchemaMigrator,
	directory TenantDirectory,
	recorder SchemaUpdateRecorder,
	config LifecycleConfig,
	logger *zap.Logger,
) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.WarmPoolConcurrency <= 0 {
		config.WarmPoolConcurrency = 4
	}
	return &LifecycleService{
		registry:    registry,
		provisioner: provisioner,
		migrator:    migrator,
		directory:   directory,
		recorder:    recorder,
		config:      config,
		logger:      logger.Named("tenant_lifecycle"),
	}
}

// ProvisionTenant creates the tenant database when missing, registers its
// pool and migrates it. Running it again for a provisioned tenant only
// re-checks each step.
func (s *LifecycleService) ProvisionTenant(ctx context.Context, tenantID string) (*ProvisionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tenant_lifecycle", "provision", telemetry.SpanAttrTenantID, tenantID)
	defer span.End()

	start := time.Now()
	fail := func(stage Stage, err error) (*ProvisionResult, error) {
		perr := &ProvisioningError{TenantID: tenantID, Stage: stage, Err: err}
		telemetry.SetAttributes(span, telemetry.SpanAttrStage, string(stage))
		telemetry.RecordError(span, perr)
		s.logger.Error("Tenant provisioning failed",
			zap.String("tenant_id", tenantID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return nil, perr
	}

	if err := tenancy.ValidateIdentifier(tenantID); err != nil {
		return fail(StageValidate, err)
	}

	created, err := s.provisioner.EnsureDatabase(ctx, tenantID)
	if err != nil {
		return fail(StageCreateDatabase, err)
	}

	if err := s.registry.Register(ctx, tenantID); err != nil {
		return fail(StageRegisterPool, err)
	}

	migrateStart := time.Now()
	err = s.migrateTenant(ctx, tenantID)
	s.record(ctx, tenantID, time.Since(migrateStart), err)
	if err != nil {
		return fail(StageMigrateSchema, err)
	}

	elapsed := time.Since(start)
	result := &ProvisionResult{
		TenantID:        tenantID,
		DatabaseCreated: created,
		Elapsed:         elapsed,
	}
	if created {
		result.Message = fmt.Sprintf("Tenant %s provisioned in %d ms", tenantID, elapsed.Milliseconds())
	} else {
		result.Message = fmt.Sprintf("Tenant %s already provisioned; schema verified in %d ms", tenantID, elapsed.Milliseconds())
	}

	s.logger.Info("Tenant provisioned",
		zap.String("tenant_id", tenantID),
		zap.Bool("database_created", created),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// UpdateSchemaForTenant migrates one tenant through its registry pool.
func (s *LifecycleService) UpdateSchemaForTenant(ctx context.Context, tenantID string) (*SchemaUpdateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tenant_lifecycle", "update_schema", telemetry.SpanAttrTenantID, tenantID)
	defer span.End()

	start := time.Now()
	err := s.migrateTenant(ctx, tenantID)
	elapsed := time.Since(start)
	s.record(ctx, tenantID, elapsed, err)

	if err != nil {
		stage := StageMigrateSchema
		if errors.Is(err, tenancy.ErrInvalidTenantIdentifier) {
			stage = StageValidate
		} else if tenancy.IsConnectionError(err) {
			stage = StageRegisterPool
		}
		perr := &ProvisioningError{TenantID: tenantID, Stage: stage, Err: err}
		telemetry.RecordError(span, perr)
		return nil, perr
	}

	return &SchemaUpdateResult{
		TenantID: tenantID,
		Elapsed:  elapsed,
		Message:  fmt.Sprintf("Schema for tenant %s is up to date (%d ms)", tenantID, elapsed.Milliseconds()),
	}, nil
}

// UpdateSchemaForAllTenants migrates every known tenant in turn. A tenant
// that fails is logged and counted; the rest are still attempted. The only
// error returned is a failure to list tenants.
func (s *LifecycleService) UpdateSchemaForAllTenants(ctx context.Context) (*SchemaUpdateSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tenant_lifecycle", "update_schema_all")
	defer span.End()

	start := time.Now()
	tenantIDs, err := s.directory.ListTenantIDs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	summary := &SchemaUpdateSummary{Total: len(tenantIDs), Completed: true}
	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			summary.Completed = false
			s.logger.Warn("Schema update for all tenants interrupted",
				zap.Int("remaining", summary.Total-summary.Succeeded-summary.Failed),
				zap.Error(ctx.Err()),
			)
			break
		}

		if _, err := s.UpdateSchemaForTenant(ctx, tenantID); err != nil {
			summary.Failed++
			s.logger.Error("Schema update failed for tenant",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}
		summary.Succeeded++
	}

	summary.Elapsed = time.Since(start)
	summary.Message = summary.describe()
	telemetry.SetAttributes(span,
		"tenants.total", summary.Total,
		"tenants.failed", summary.Failed,
	)

	s.logger.Info("Schema update for all tenants finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Bool("completed", summary.Completed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// RunStartupSchemaUpdate updates every tenant when configured to. It blocks
// until done so the server starts serving on current schemas.
func (s *LifecycleService) RunStartupSchemaUpdate(ctx context.Context) (*SchemaUpdateSummary, error) {
	if !s.config.UpdateSchemaOnStartup {
		s.logger.Debug("Startup schema update disabled")
		return nil, nil
	}
	s.logger.Info("Running startup schema update for all tenants")
	return s.UpdateSchemaForAllTenants(ctx)
}

// ListTenants returns every tenant in the master registry.
func (s *LifecycleService) ListTenants(ctx context.Context) ([]string, error) {
	tenantIDs, err := s.directory.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenantIDs, nil
}

// PoolStats returns connection statistics of every open tenant pool.
func (s *LifecycleService) PoolStats() []tenancy.PoolStats {
	return s.registry.Stats()
}

// WarmPools opens the pool of every known tenant with bounded concurrency
// and returns how many opened. Tenants that fail are logged.
func (s *LifecycleService) WarmPools(ctx context.Context) (int, error) {
	tenantIDs, err := s.directory.ListTenantIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	var warmed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.WarmPoolConcurrency)
	for _, tenantID := range tenantIDs {
		g.Go(func() error {
			if err := s.registry.Register(gctx, tenantID); err != nil {
				s.logger.Warn("Failed to warm tenant pool", zap.String("tenant_id", tenantID), zap.Error(err))
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Tenant pools warmed",
		zap.Int("tenants", len(tenantIDs)),
		zap.Int32("warmed", warmed.Load()),
	)
	return int(warmed.Load()), nil
}

// WarmPoolsOnStartup runs WarmPools when configured to.
func (s *LifecycleService) WarmPoolsOnStartup(ctx context.Context) {
	if !s.config.WarmPoolsOnStartup {
		return
	}
	if _, err := s.WarmPools(ctx); err != nil {
		s.logger.Warn("Pool warm-up skipped", zap.Error(err))
	}
}

// EvictTenant closes the tenant's pool. The next request reopens it.
func (s *LifecycleService) EvictTenant(_ context.Context, tenantID string) error {
	return s.registry.Remove(tenantID)
}

func (s *LifecycleService) migrateTenant(ctx context.Context, tenantID string) error {
	pool, err := s.registry.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	return s.migrator.MigrateTenant(ctx, pool)
}

func (s *LifecycleService) record(ctx context.Context, tenantID string, elapsed time.Duration, err error) {
	if s.recorder != nil {
		s.recorder.RecordSchemaUpdate(ctx, tenantID, elapsed, err)
	}
}

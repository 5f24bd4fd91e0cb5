package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
var (
	AttrTenantID = attribute.Key("tenant_id")
	AttrPoolName = attribute.Key("pool")
	AttrState    = attribute.Key("state")
	AttrOutcome  = attribute.Key("outcome")
)

// SchemaDurationBuckets are histogram boundaries (seconds) for per-tenant migrations.
var SchemaDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// PoolStatsSource is the read side of the tenant registry.
type PoolStatsSource interface {
	Stats() []tenancy.PoolStats
}

// TenancyMetrics exposes tenant pool gauges and schema update counters.
type TenancyMetrics struct {
	schemaUpdates  metric.Int64Counter
	schemaDuration metric.Float64Histogram
	registration   metric.Registration
}

// NewTenancyMetrics registers the instruments on meter. Pool gauges are
// observed from source at collection time.
func NewTenancyMetrics(meter metric.Meter, source PoolStatsSource) (*TenancyMetrics, error) {
	activePools, err := meter.Int64ObservableGauge("tenant_pools_active",
		metric.WithDescription("Number of open tenant connection pools"),
		metric.WithUnit("{pool}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge tenant_pools_active: %w", err)
	}
	connections, err := meter.Int64ObservableGauge("tenant_pool_connections",
		metric.WithDescription("Connections per tenant pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge tenant_pool_connections: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("tenant_pool_wait_total",
		metric.WithDescription("Total waits for a tenant pool connection"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter tenant_pool_wait_total: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := source.Stats()
		o.ObserveInt64(activePools, int64(len(stats)))
		for _, s := range stats {
			base := []attribute.KeyValue{AttrTenantID.String(s.TenantID), AttrPoolName.String(s.Name)}
			o.ObserveInt64(connections, int64(s.InUse), metric.WithAttributes(append(base, AttrState.String("in_use"))...))
			o.ObserveInt64(connections, int64(s.Idle), metric.WithAttributes(append(base, AttrState.String("idle"))...))
			o.ObserveInt64(waits, s.WaitCount, metric.WithAttributes(base...))
		}
		return nil
	}, activePools, connections, waits)
	if err != nil {
		return nil, fmt.Errorf("failed to register pool callback: %w", err)
	}

	schemaUpdates, err := meter.Int64Counter("tenant_schema_updates_total",
		metric.WithDescription("Per-tenant schema updates by outcome"),
		metric.WithUnit("{update}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter tenant_schema_updates_total: %w", err)
	}
	schemaDuration, err := meter.Float64Histogram("tenant_schema_update_duration_seconds",
		metric.WithDescription("Per-tenant schema update latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(SchemaDurationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram tenant_schema_update_duration_seconds: %w", err)
	}

	return &TenancyMetrics{
		schemaUpdates:  schemaUpdates,
		schemaDuration: schemaDuration,
		registration:   reg,
	}, nil
}

// RecordSchemaUpdate records one per-tenant schema update.
func (m *TenancyMetrics) RecordSchemaUpdate(ctx context.Context, tenantID string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.schemaUpdates.Add(ctx, 1, metric.WithAttributes(AttrTenantID.String(tenantID), AttrOutcome.String(outcome)))
	m.schemaDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
}

// Close unregisters the pool callback.
func (m *TenancyMetrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

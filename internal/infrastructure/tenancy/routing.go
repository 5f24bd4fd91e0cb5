package tenancy

import (
	"context"

	"gorm.io/gorm"
)

// ConnectionSource hands repositories a database handle bound to ctx.
type ConnectionSource interface {
	DB(ctx context.Context) (*gorm.DB, error)
}

// RoutingSource dispatches to the active tenant's pool, or to the master pool
// when ctx carries no tenant. It never falls back to master once a tenant is
// set.
type RoutingSource struct {
	master   *Pool
	registry *Registry
}

// NewRoutingSource creates a RoutingSource.
func NewRoutingSource(master *Pool, registry *Registry) *RoutingSource {
	return &RoutingSource{master: master, registry: registry}
}

// Pool returns the pool for the tenant active in ctx.
func (s *RoutingSource) Pool(ctx context.Context) (*Pool, error) {
	if tenantID, ok := CurrentTenant(ctx); ok {
		return s.registry.Get(ctx, tenantID)
	}
	return s.master, nil
}

// DB implements ConnectionSource.
func (s *RoutingSource) DB(ctx context.Context) (*gorm.DB, error) {
	p, err := s.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return p.DB.WithContext(ctx), nil
}

// Master returns the master pool.
func (s *RoutingSource) Master() *Pool {
	return s.master
}

// Registry returns the tenant registry.
func (s *RoutingSource) Registry() *Registry {
	return s.registry
}

// StaticSource always serves the same pool, regardless of tenant.
type StaticSource struct {
	pool *Pool
}

// NewStaticSource wraps a single pool as a ConnectionSource.
func NewStaticSource(pool *Pool) *StaticSource {
	return &StaticSource{pool: pool}
}

// DB implements ConnectionSource.
func (s *StaticSource) DB(ctx context.Context) (*gorm.DB, error) {
	return s.pool.DB.WithContext(ctx), nil
}

package tenancy

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pool is one live connection pool, either the master pool or a tenant's.
type Pool struct {
	Name     string
	TenantID string
	DB       *gorm.DB
}

// SQL returns the underlying database/sql pool.
func (p *Pool) SQL() (*sql.DB, error) {
	return p.DB.DB()
}

// Close closes the underlying database/sql pool.
func (p *Pool) Close() error {
	sqlDB, err := p.SQL()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PoolFactory builds the pool for one tenant.
type PoolFactory interface {
	Open(ctx context.Context, tenantID string) (*Pool, error)
}

// PoolFactoryFunc adapts a function to PoolFactory.
type PoolFactoryFunc func(ctx context.Context, tenantID string) (*Pool, error)

// Open calls f.
func (f PoolFactoryFunc) Open(ctx context.Context, tenantID string) (*Pool, error) {
	return f(ctx, tenantID)
}

// PoolStats is a point-in-time snapshot of one tenant pool.
type PoolStats struct {
	TenantID        string `json:"tenant_id"`
	Name            string `json:"name"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	MaxOpen         int    `json:"max_open"`
	WaitCount       int64  `json:"wait_count"`
}

// DefaultPoolOpenTimeout bounds one pool construction when no
// WithOpenTimeout option is given.
const DefaultPoolOpenTimeout = 30 * time.Second

// entry is a pool that is either being built or ready. ready is closed once
// pool or err is set. removed is guarded by Registry.mu.
type entry struct {
	ready   chan struct{}
	pool    *Pool
	err     error
	removed bool
}

// Registry caches one pool per tenant. Pools are created on first use or
// on Register, and closed on Remove or Close.
type Registry struct {
	factory     PoolFactory
	logger      *zap.Logger
	openTimeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOpenTimeout bounds how long one pool construction may take.
func WithOpenTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.openTimeout = d
		}
	}
}

// NewRegistry creates an empty registry backed by factory.
func NewRegistry(factory PoolFactory, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		factory:     factory,
		logger:      logger.Named("tenant_registry"),
		openTimeout: DefaultPoolOpenTimeout,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the pool for tenantID, creating it on first call. Concurrent
// first calls for the same tenant share a single construction; calls for other
// tenants are not blocked by it. A failed construction is not cached and not
// retried.
//
// The construction is detached from the caller that started it: it keeps
// ctx's values but not its cancellation, and is bounded by the open
// timeout instead. Each caller's ctx only limits how long that caller waits.
func (r *Registry) Get(ctx context.Context, tenantID string) (*Pool, error) {
	if err := ValidateIdentifier(tenantID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	e, ok := r.entries[tenantID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.entries[tenantID] = e
	}
	r.mu.Unlock()

	if !ok {
		go r.build(context.WithoutCancel(ctx), tenantID, e)
	}
	return r.wait(ctx, tenantID, e)
}

// Register eagerly creates the pool for tenantID.
func (r *Registry) Register(ctx context.Context, tenantID string) error {
	_, err := r.Get(ctx, tenantID)
	return err
}

// Remove evicts and closes the pool for tenantID. Removing a tenant that has
// no pool is a no-op. A construction still in flight is abandoned without
// waiting: its pool is closed as soon as it is built and its callers get a
// *ConnectionError wrapping ErrPoolEvicted.
func (r *Registry) Remove(tenantID string) error {
	if err := ValidateIdentifier(tenantID); err != nil {
		return err
	}

	r.mu.Lock()
	e, ok := r.entries[tenantID]
	building := false
	if ok {
		e.removed = true
		building = !isReady(e)
		delete(r.entries, tenantID)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Info("No pool cached for tenant, nothing to remove", zap.String("tenant_id", tenantID))
		return nil
	}
	if building || e.err != nil {
		r.logger.Info("Tenant pool abandoned before it was ready", zap.String("tenant_id", tenantID))
		return nil
	}
	if err := e.pool.Close(); err != nil {
		r.logger.Warn("Failed to close tenant pool", zap.String("tenant_id", tenantID), zap.Error(err))
		return fmt.Errorf("close pool for tenant %q: %w", tenantID, err)
	}
	r.logger.Info("Tenant pool removed", zap.String("tenant_id", tenantID), zap.String("pool", e.pool.Name))
	return nil
}

// Tenants returns the identifiers with a ready pool, sorted.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id, e := range r.entries {
		if isReady(e) && e.err == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of cached pools, including ones still being built.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats returns connection statistics for every ready pool.
func (r *Registry) Stats() []PoolStats {
	r.mu.Lock()
	pools := make([]*Pool, 0, len(r.entries))
	for _, e := range r.entries {
		if isReady(e) && e.err == nil {
			pools = append(pools, e.pool)
		}
	}
	r.mu.Unlock()

	stats := make([]PoolStats, 0, len(pools))
	for _, p := range pools {
		sqlDB, err := p.SQL()
		if err != nil {
			continue
		}
		s := sqlDB.Stats()
		stats = append(stats, PoolStats{
			TenantID:        p.TenantID,
			Name:            p.Name,
			OpenConnections: s.OpenConnections,
			InUse:           s.InUse,
			Idle:            s.Idle,
			MaxOpen:         s.MaxOpenConnections,
			WaitCount:       s.WaitCount,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].TenantID < stats[j].TenantID })
	return stats
}

// Close closes every pool, waiting for constructions in flight. The
// registry rejects all calls afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	for _, e := range entries {
		e.removed = true
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	var firstErr error
	for id, e := range entries {
		<-e.ready
		if e.err != nil {
			continue
		}
		if err := e.pool.Close(); err != nil {
			r.logger.Warn("Failed to close tenant pool", zap.String("tenant_id", id), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.logger.Info("Tenant registry closed", zap.Int("pools", len(entries)))
	return firstErr
}

// build runs the factory once for e and publishes the result to every
// waiter.
func (r *Registry) build(ctx context.Context, tenantID string, e *entry) {
	ctx, cancel := context.WithTimeout(ctx, r.openTimeout)
	defer cancel()

	pool, err := r.open(ctx, tenantID)

	// ready is closed under mu so Remove sees it together with removed.
	r.mu.Lock()
	evicted := err == nil && e.removed
	switch {
	case err != nil:
		e.err = &ConnectionError{TenantID: tenantID, Err: err}
		if r.entries[tenantID] == e {
			delete(r.entries, tenantID)
		}
	case evicted:
		e.err = &ConnectionError{TenantID: tenantID, Err: ErrPoolEvicted}
	default:
		e.pool = pool
	}
	close(e.ready)
	r.mu.Unlock()

	switch {
	case err != nil:
		r.logger.Error("Failed to create tenant pool", zap.String("tenant_id", tenantID), zap.Error(err))
	case evicted:
		if cerr := pool.Close(); cerr != nil {
			r.logger.Warn("Failed to close abandoned tenant pool", zap.String("tenant_id", tenantID), zap.Error(cerr))
		}
		r.logger.Info("Tenant pool evicted while opening", zap.String("tenant_id", tenantID))
	default:
		r.logger.Info("Tenant pool created", zap.String("tenant_id", tenantID), zap.String("pool", pool.Name))
	}
}

func (r *Registry) open(ctx context.Context, tenantID string) (pool *Pool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pool, err = nil, fmt.Errorf("pool factory panicked: %v", rec)
		}
	}()
	pool, err = r.factory.Open(ctx, tenantID)
	if err == nil && pool == nil {
		err = fmt.Errorf("pool factory returned no pool")
	}
	return pool, err
}

func (r *Registry) wait(ctx context.Context, tenantID string, e *entry) (*Pool, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, &ConnectionError{TenantID: tenantID, Err: ctx.Err()}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.pool, nil
}

func isReady(e *entry) bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

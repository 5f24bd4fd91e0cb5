package tenancy

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// ConnectionProvider hands out raw connections for ORM sessions: master
// connections for tenant-independent work and tenant connections for an
// identifier the caller has already resolved. It does not read the context's
// tenant itself.
type ConnectionProvider struct {
	master   *Pool
	registry *Registry
}

// NewConnectionProvider creates a ConnectionProvider.
func NewConnectionProvider(master *Pool, registry *Registry) *ConnectionProvider {
	return &ConnectionProvider{master: master, registry: registry}
}

// AnyConnection returns a connection from the master pool.
func (p *ConnectionProvider) AnyConnection(ctx context.Context) (*sql.Conn, error) {
	return acquire(ctx, p.master)
}

// ReleaseAnyConnection returns a master connection to its pool.
func (p *ConnectionProvider) ReleaseAnyConnection(conn *sql.Conn) error {
	return conn.Close()
}

// Connection returns a connection from tenantID's pool.
func (p *ConnectionProvider) Connection(ctx context.Context, tenantID string) (*sql.Conn, error) {
	pool, err := p.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	conn, err := acquire(ctx, pool)
	if err != nil {
		return nil, &ConnectionError{TenantID: tenantID, Err: err}
	}
	return conn, nil
}

// ReleaseConnection returns a tenant connection to its pool.
func (p *ConnectionProvider) ReleaseConnection(_ string, conn *sql.Conn) error {
	return conn.Close()
}

func acquire(ctx context.Context, pool *Pool) (*sql.Conn, error) {
	sqlDB, err := pool.SQL()
	if err != nil {
		return nil, err
	}
	return sqlDB.Conn(ctx)
}

// IdentifierResolver tells ORM sessions which tenant they are for.
type IdentifierResolver interface {
	ResolveCurrentTenantIdentifier(ctx context.Context) string
	ValidateExistingSessions() bool
}

// ContextResolver resolves the tenant from the request context, reporting
// DefaultTenantKey when none is set.
type ContextResolver struct{}

// ResolveCurrentTenantIdentifier implements IdentifierResolver.
func (ContextResolver) ResolveCurrentTenantIdentifier(ctx context.Context) string {
	if id, ok := CurrentTenant(ctx); ok {
		return id
	}
	return DefaultTenantKey
}

// ValidateExistingSessions implements IdentifierResolver.
func (ContextResolver) ValidateExistingSessions() bool { return true }

// SessionFactory opens gorm sessions pinned to one raw connection.
type SessionFactory struct {
	provider *ConnectionProvider
	resolver IdentifierResolver
	routing  *RoutingSource
}

// NewSessionFactory creates a SessionFactory. The routing source supplies the
// gorm configuration (dialect, callbacks, plugins) of each pool.
func NewSessionFactory(provider *ConnectionProvider, resolver IdentifierResolver, routing *RoutingSource) *SessionFactory {
	if resolver == nil {
		resolver = ContextResolver{}
	}
	return &SessionFactory{provider: provider, resolver: resolver, routing: routing}
}

// OpenSession resolves the tenant for ctx and pins a connection to it. The
// default key is served from the master pool.
func (f *SessionFactory) OpenSession(ctx context.Context) (*Session, error) {
	tenantID := f.resolver.ResolveCurrentTenantIdentifier(ctx)

	var (
		conn *sql.Conn
		pool *Pool
		err  error
	)
	if tenantID == DefaultTenantKey {
		pool = f.routing.Master()
		conn, err = f.provider.AnyConnection(ctx)
	} else {
		pool, err = f.routing.Registry().Get(ctx, tenantID)
		if err == nil {
			conn, err = f.provider.Connection(ctx, tenantID)
		}
	}
	if err != nil {
		return nil, err
	}

	db := pool.DB.Session(&gorm.Session{NewDB: true, Context: ctx})
	db.Statement.ConnPool = conn

	return &Session{
		tenantID: tenantID,
		conn:     conn,
		db:       db,
		factory:  f,
	}, nil
}

// Session is a gorm handle bound to one connection of one tenant.
type Session struct {
	tenantID string
	conn     *sql.Conn
	db       *gorm.DB
	factory  *SessionFactory
	closed   bool
}

// TenantID returns the identifier the session was opened for.
func (s *Session) TenantID() string { return s.tenantID }

// DB returns the session's gorm handle for use under ctx. When the resolver
// validates sessions, ctx must still resolve to the session's tenant.
func (s *Session) DB(ctx context.Context) (*gorm.DB, error) {
	if s.closed {
		return nil, fmt.Errorf("session for tenant %q is closed", s.tenantID)
	}
	if s.factory.resolver.ValidateExistingSessions() {
		if current := s.factory.resolver.ResolveCurrentTenantIdentifier(ctx); current != s.tenantID {
			return nil, fmt.Errorf("%w: opened for %q, current %q", ErrSessionTenantMismatch, s.tenantID, current)
		}
	}
	return s.db.WithContext(ctx), nil
}

// Close releases the session's connection. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tenantID == DefaultTenantKey {
		return s.factory.provider.ReleaseAnyConnection(s.conn)
	}
	return s.factory.provider.ReleaseConnection(s.tenantID, s.conn)
}

// Package tenancy routes data access to per-tenant databases.
//
// A request's tenant lives in its context.Context. Repositories ask a
// ConnectionSource for a *gorm.DB; the RoutingSource answers with the
// tenant's pool from the Registry, or with the master pool when the
// context carries no tenant.
package tenancy

import "context"

type tenantKey struct{}

// WithTenant returns a copy of ctx in which tenantID is the active tenant.
// An empty tenantID is equivalent to WithoutTenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// WithoutTenant returns a copy of ctx with no active tenant, shadowing any
// tenant set on a parent context.
func WithoutTenant(ctx context.Context) context.Context {
	if _, ok := CurrentTenant(ctx); !ok {
		return ctx
	}
	return context.WithValue(ctx, tenantKey{}, "")
}

// CurrentTenant returns the active tenant identifier, if any.
func CurrentTenant(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(tenantKey{}).(string)
	return id, id != ""
}

// RequireTenant is CurrentTenant for callers that cannot proceed without one.
func RequireTenant(ctx context.Context) (string, error) {
	id, ok := CurrentTenant(ctx)
	if !ok {
		return "", ErrTenantNotResolved
	}
	return id, nil
}

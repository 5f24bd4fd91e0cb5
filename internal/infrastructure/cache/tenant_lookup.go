package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

const tenantLookupPrefix = "tenant:lookup:"

// TenantSource answers identity-to-tenant lookups from the system of record.
type TenantSource interface {
	TenantIDForUser(ctx context.Context, identityKey string) (string, error)
}

// TenantLookupCache caches TenantSource answers. Only positive answers are
// cached, so a user added to a business resolves on the next request. Store
// failures are logged and the source is used directly.
type TenantLookupCache struct {
	source TenantSource
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewTenantLookupCache creates a TenantLookupCache.
func NewTenantLookupCache(source TenantSource, store Store, ttl time.Duration, logger *zap.Logger) *TenantLookupCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantLookupCache{
		source: source,
		store:  store,
		ttl:    ttl,
		logger: logger.Named("tenant_lookup_cache"),
	}
}

// TenantIDForUser returns the tenant for identityKey, "" when there is none.
func (c *TenantLookupCache) TenantIDForUser(ctx context.Context, identityKey string) (string, error) {
	key := lookupKey(identityKey)

	if tenantID, found, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("Tenant lookup cache read failed", zap.Error(err))
	} else if found {
		return tenantID, nil
	}

	tenantID, err := c.source.TenantIDForUser(ctx, identityKey)
	if err != nil {
		return "", err
	}
	if tenantID == "" || c.ttl <= 0 {
		return tenantID, nil
	}

	if err := c.store.Set(ctx, key, tenantID, c.ttl); err != nil {
		c.logger.Warn("Tenant lookup cache write failed", zap.Error(err))
	}
	return tenantID, nil
}

// Invalidate drops cached answers for the given identities.
func (c *TenantLookupCache) Invalidate(ctx context.Context, identityKeys ...string) error {
	if len(identityKeys) == 0 {
		return nil
	}
	keys := make([]string, len(identityKeys))
	for i, k := range identityKeys {
		keys[i] = lookupKey(k)
	}
	return c.store.Delete(ctx, keys...)
}

func lookupKey(identityKey string) string {
	return tenantLookupPrefix + strings.ToLower(strings.TrimSpace(identityKey))
}

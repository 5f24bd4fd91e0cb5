package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pos/backoffice/internal/infrastructure/logger"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.uber.org/zap"
)

// TenantIDKey is the gin key holding the resolved tenant while the request runs.
const TenantIDKey = "tenant_id"

// TenantLookup answers which tenant an authenticated caller belongs to.
// An empty id with a nil error means the caller has no tenant.
type TenantLookup interface {
	TenantIDForUser(ctx context.Context, identityKey string) (string, error)
}

// TenantLookupFunc adapts a function to TenantLookup.
type TenantLookupFunc func(ctx context.Context, identityKey string) (string, error)

// TenantIDForUser implements TenantLookup.
func (f TenantLookupFunc) TenantIDForUser(ctx context.Context, identityKey string) (string, error) {
	return f(ctx, identityKey)
}

// TenantResolutionConfig holds configuration for the tenant resolution filter.
type TenantResolutionConfig struct {
	Lookup TenantLookup
	// ExemptPathPrefixes bypass resolution and never touch the tenant context.
	ExemptPathPrefixes []string
	Logger             *zap.Logger
}

// TenantResolution maps the authenticated caller to a tenant and installs it
// in the request context for the rest of the chain. It must run after JWT
// authentication.
//
// The original request (and so the tenant-free context) is restored when
// the chain returns, including when a downstream handler panics.
func TenantResolution(cfg TenantResolutionConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("tenant_filter")

	return func(c *gin.Context) {
		if isExempt(c.Request.URL.Path, cfg.ExemptPathPrefixes) {
			c.Next()
			return
		}

		identity := GetJWTClaims(c).IdentityKey()
		if identity == "" {
			log.Warn("Tenant resolution without identity", zap.String("path", c.Request.URL.Path))
			abortWithError(c, http.StatusUnauthorized, "TENANT_IDENTITY_MISSING", "Cannot resolve tenant without an authenticated identity")
			return
		}

		tenantID, err := cfg.Lookup.TenantIDForUser(c.Request.Context(), identity)
		if err != nil {
			log.Error("Tenant lookup failed",
				zap.String("user", identity),
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Error(err),
			)
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}
		if tenantID == "" {
			log.Info("No tenant for caller", zap.String("user", identity))
			abortWithError(c, http.StatusForbidden, "TENANT_NOT_RESOLVED", tenancy.ErrTenantNotResolved.Error())
			return
		}

		original := c.Request
		defer func() {
			c.Request = original
			c.Set(TenantIDKey, "")
		}()

		c.Request = original.WithContext(tenancy.WithTenant(original.Context(), tenantID))
		c.Set(TenantIDKey, tenantID)
		logger.ObserveTenant(c)
		tagTenant(c, tenantID)

		log.Debug("Tenant resolved", zap.String("user", identity), zap.String("tenant_id", tenantID))
		c.Next()
	}
}

// isExempt matches whole path segments: /health covers /health/live but
// not /healthz.
func isExempt(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimSuffix(prefix, "/")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// GetTenantID returns the tenant resolved for this request, or "".
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

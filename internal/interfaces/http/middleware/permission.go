package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pos/backoffice/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// RequireRole allows the request when the caller holds at least one of roles.
// Install it after JWT authentication.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !claims.HasAnyRole(roles...) {
			logger.L(c.Request.Context()).Warn("Role check failed",
				zap.Strings("required_any", roles),
				zap.Strings("roles", claims.Roles),
				zap.String("path", c.Request.URL.Path),
			)
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

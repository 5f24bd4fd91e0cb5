package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.uber.org/zap"
)

// GinMiddleware attaches logger to each request context and logs one line
// per request once the handler chain has finished. The tenant is read after
// the chain, from the context the chain ran with.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetString("request_id")
		ctx := WithContext(c.Request.Context(), logger)
		if requestID != "" {
			ctx = WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)

		var tenantID string
		c.Set(tenantObserverKey, func(id string) { tenantID = id })

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if tenantID != "" {
			fields = append(fields, zap.String("tenant_id", tenantID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP Request", fields...)
		default:
			logger.Info("HTTP Request", fields...)
		}
	}
}

const tenantObserverKey = "logger.tenant_observer"

// ObserveTenant records the resolved tenant on the request log line.
// It is a no-op when GinMiddleware is not installed.
func ObserveTenant(c *gin.Context) {
	v, ok := c.Get(tenantObserverKey)
	if !ok {
		return
	}
	if observe, ok := v.(func(string)); ok {
		if id, ok := tenancy.CurrentTenant(c.Request.Context()); ok {
			observe(id)
		}
	}
}

// Recovery recovers from panics, logs them and answers 500.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", c.GetString("request_id")),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

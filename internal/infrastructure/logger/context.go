package logger

import (
	"context"

	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	userKey      contextKey = "user"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithUser stores the caller identity (email or subject) for log correlation.
func WithUser(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, userKey, identity)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetUser retrieves the caller identity from context
func GetUser(ctx context.Context) string {
	u, _ := ctx.Value(userKey).(string)
	return u
}

// L returns the context's logger with trace, request, tenant and user
// fields attached.
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := GetRequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if tenantID, ok := tenancy.CurrentTenant(ctx); ok {
		l = l.With(zap.String("tenant_id", tenantID))
	}
	if u := GetUser(ctx); u != "" {
		l = l.With(zap.String("user", u))
	}
	return l
}

package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pos/backoffice/internal/infrastructure/logger"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/pos/backoffice/internal/interfaces/http/dto"
	"github.com/pos/backoffice/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// SystemInfo describes the running build.
type SystemInfo struct {
	Name    string
	Version string
	Env     string
}

// SystemHandler serves health, build info and the session probe.
type SystemHandler struct {
	BaseHandler
	info      SystemInfo
	routing   *tenancy.RoutingSource
	sessions  *tenancy.SessionFactory
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(info SystemInfo, routing *tenancy.RoutingSource, sessions *tenancy.SessionFactory) *SystemHandler {
	return &SystemHandler{
		info:      info,
		routing:   routing,
		sessions:  sessions,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Env       string `json:"env"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// HealthResponse reports master database reachability.
type HealthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	TenantPools int    `json:"tenant_pools"`
}

// TenantSessionResponse shows how the caller's request is routed.
type TenantSessionResponse struct {
	// TenantID is what the resolution filter installed.
	TenantID string `json:"tenant_id"`
	// SessionTenantID is what the ORM resolver saw when opening a session.
	SessionTenantID string `json:"session_tenant_id"`
	Pool            string `json:"pool"`
}

// Health handles GET /health.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:      "healthy",
		Database:    "up",
		TenantPools: h.routing.Registry().Len(),
	}
	if err := pingPool(ctx, h.routing.Master()); err != nil {
		logger.L(ctx).Warn("Master database ping failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "down"
		c.JSON(http.StatusServiceUnavailable, dto.NewSuccessResponse(resp))
		return
	}
	h.Success(c, resp)
}

// GetSystemInfo handles GET /system/info.
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.info.Name,
		Version:   h.info.Version,
		Env:       h.info.Env,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// CurrentTenant handles GET /me/tenant. It opens an ORM session for the
// request, runs a trivial query on it and reports where it was routed.
func (h *SystemHandler) CurrentTenant(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := h.sessions.OpenSession(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.L(ctx).Warn("Failed to release session connection", zap.Error(err))
		}
	}()

	db, err := session.DB(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		h.HandleError(c, err)
		return
	}

	pool := h.routing.Master().Name
	if session.TenantID() != tenancy.DefaultTenantKey {
		if p, err := h.routing.Registry().Get(ctx, session.TenantID()); err == nil {
			pool = p.Name
		}
	}

	h.Success(c, TenantSessionResponse{
		TenantID:        middleware.GetTenantID(c),
		SessionTenantID: session.TenantID(),
		Pool:            pool,
	})
}

func pingPool(ctx context.Context, pool *tenancy.Pool) error {
	sqlDB, err := pool.SQL()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

package handler

import (
	"github.com/gin-gonic/gin"
	appidentity "github.com/pos/backoffice/internal/application/identity"
	apptenancy "github.com/pos/backoffice/internal/application/tenancy"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/pos/backoffice/internal/interfaces/http/dto"
)

// TenantAdminHandler serves the superuser tenant administration endpoints.
// These run outside tenant resolution.
type TenantAdminHandler struct {
	BaseHandler
	lifecycle  *apptenancy.LifecycleService
	businesses *appidentity.BusinessService
}

// NewTenantAdminHandler creates a new TenantAdminHandler
func NewTenantAdminHandler(lifecycle *apptenancy.LifecycleService, businesses *appidentity.BusinessService) *TenantAdminHandler {
	return &TenantAdminHandler{
		lifecycle:  lifecycle,
		businesses: businesses,
	}
}

// TenantListResponse lists known tenants.
type TenantListResponse struct {
	Tenants   []string `json:"tenants"`
	Count     int      `json:"count"`
	OpenPools int      `json:"open_pools"`
}

// SchemaUpdateResponse is the result of updating one tenant.
type SchemaUpdateResponse struct {
	TenantID  string `json:"tenant_id"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Message   string `json:"message"`
}

// SchemaUpdateSummaryResponse is the result of updating every tenant.
type SchemaUpdateSummaryResponse struct {
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Completed bool   `json:"completed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Message   string `json:"message"`
}

// ProvisionResponse is the result of (re)provisioning a tenant.
type ProvisionResponse struct {
	TenantID        string `json:"tenant_id"`
	DatabaseCreated bool   `json:"database_created"`
	ElapsedMs       int64  `json:"elapsed_ms"`
	Message         string `json:"message"`
}

// PoolStatsResponse lists open tenant pools.
type PoolStatsResponse struct {
	Pools []tenancy.PoolStats `json:"pools"`
	Count int                 `json:"count"`
}

// List handles GET /admin/tenants.
func (h *TenantAdminHandler) List(c *gin.Context) {
	tenants, err := h.lifecycle.ListTenants(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, TenantListResponse{
		Tenants:   tenants,
		Count:     len(tenants),
		OpenPools: len(h.lifecycle.PoolStats()),
	})
}

// UpdateAllSchemas handles POST /admin/tenants/schema. Per-tenant failures
// are counted in the summary, not returned as errors.
func (h *TenantAdminHandler) UpdateAllSchemas(c *gin.Context) {
	summary, err := h.lifecycle.UpdateSchemaForAllTenants(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SchemaUpdateSummaryResponse{
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Completed: summary.Completed,
		ElapsedMs: summary.Elapsed.Milliseconds(),
		Message:   summary.Message,
	})
}

// UpdateSchema handles POST /admin/tenants/:tenant_id/schema.
func (h *TenantAdminHandler) UpdateSchema(c *gin.Context) {
	var req dto.TenantIDRequest
	if !bindURI(c, &req) {
		return
	}

	result, err := h.lifecycle.UpdateSchemaForTenant(c.Request.Context(), req.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SchemaUpdateResponse{
		TenantID:  result.TenantID,
		ElapsedMs: result.Elapsed.Milliseconds(),
		Message:   result.Message,
	})
}

// Provision handles POST /admin/tenants/:tenant_id/provision. It repairs a
// tenant whose database or schema is missing; running it on a healthy
// tenant changes nothing.
func (h *TenantAdminHandler) Provision(c *gin.Context) {
	var req dto.TenantIDRequest
	if !bindURI(c, &req) {
		return
	}

	result, err := h.lifecycle.ProvisionTenant(c.Request.Context(), req.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProvisionResponse{
		TenantID:        result.TenantID,
		DatabaseCreated: result.DatabaseCreated,
		ElapsedMs:       result.Elapsed.Milliseconds(),
		Message:         result.Message,
	})
}

// Pools handles GET /admin/tenants/pools.
func (h *TenantAdminHandler) Pools(c *gin.Context) {
	stats := h.lifecycle.PoolStats()
	h.Success(c, PoolStatsResponse{Pools: stats, Count: len(stats)})
}

// EvictPool handles DELETE /admin/tenants/:tenant_id/pool.
func (h *TenantAdminHandler) EvictPool(c *gin.Context) {
	var req dto.TenantIDRequest
	if !bindURI(c, &req) {
		return
	}

	if err := h.lifecycle.EvictTenant(c.Request.Context(), req.TenantID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"tenant_id": req.TenantID, "message": "Tenant pool closed"})
}

// Deactivate handles POST /admin/tenants/:tenant_id/deactivate.
func (h *TenantAdminHandler) Deactivate(c *gin.Context) {
	var req dto.TenantIDRequest
	if !bindURI(c, &req) {
		return
	}

	business, err := h.businesses.DeactivateBusiness(c.Request.Context(), req.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, business)
}

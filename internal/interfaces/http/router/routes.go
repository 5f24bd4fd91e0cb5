package router

import (
	"github.com/gin-gonic/gin"
	"github.com/pos/backoffice/internal/infrastructure/auth"
	"github.com/pos/backoffice/internal/interfaces/http/handler"
	"github.com/pos/backoffice/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers mounted by Mount.
type Handlers struct {
	System      *handler.SystemHandler
	Businesses  *handler.BusinessHandler
	TenantAdmin *handler.TenantAdminHandler
	Products    *handler.ProductHandler
}

// Security is the authentication chain of the versioned API. Authenticate
// runs first; ResolveTenant must skip admin, onboarding and system paths.
type Security struct {
	Authenticate  gin.HandlerFunc
	ResolveTenant gin.HandlerFunc
}

// Mount registers the health probe and the whole /api/v1 route table.
//
//	/health                                   master ping, no auth
//	/api/v1/system/info                       build info
//	/api/v1/onboarding/*                      authenticated, no tenant
//	/api/v1/admin/*                           superuser, no tenant
//	/api/v1/catalog/*, /api/v1/me/tenant      tenant resolved from caller
func Mount(engine *gin.Engine, h Handlers, sec Security) {
	engine.GET("/health", h.System.Health)

	public := NewRouter(engine)
	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)
	public.Register(system)
	public.Setup()

	api := NewRouter(engine, WithMiddleware(sec.Authenticate, sec.ResolveTenant))

	onboarding := NewDomainGroup("onboarding", "/onboarding")
	onboarding.POST("/businesses", h.Businesses.Register)
	onboarding.GET("/currencies", h.Businesses.Currencies)

	admin := NewDomainGroup("admin", "/admin").Use(middleware.RequireRole(auth.RoleSuperuser))
	admin.Group("tenants", "/tenants").
		GET("", h.TenantAdmin.List).
		POST("/schema", h.TenantAdmin.UpdateAllSchemas).
		GET("/pools", h.TenantAdmin.Pools).
		POST("/:tenant_id/schema", h.TenantAdmin.UpdateSchema).
		POST("/:tenant_id/provision", h.TenantAdmin.Provision).
		POST("/:tenant_id/deactivate", h.TenantAdmin.Deactivate).
		DELETE("/:tenant_id/pool", h.TenantAdmin.EvictPool)
	admin.Group("businesses", "/businesses").
		GET("", h.Businesses.List).
		GET("/:id", h.Businesses.Get).
		POST("/:id/users", h.Businesses.AddUser)

	catalog := NewDomainGroup("catalog", "/catalog")
	catalog.Group("products", "/products").
		GET("", h.Products.List).
		POST("", h.Products.Create).
		GET("/:id", h.Products.GetByID)

	me := NewDomainGroup("me", "/me")
	me.GET("/tenant", h.System.CurrentTenant)

	api.Register(onboarding).
		Register(admin).
		Register(catalog).
		Register(me)
	api.Setup()
}

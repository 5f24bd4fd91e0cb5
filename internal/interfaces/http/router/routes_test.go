package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	appcatalog "github.com/pos/backoffice/internal/application/catalog"
	appidentity "github.com/pos/backoffice/internal/application/identity"
	apptenancy "github.com/pos/backoffice/internal/application/tenancy"
	"github.com/pos/backoffice/internal/infrastructure/auth"
	"github.com/pos/backoffice/internal/infrastructure/cache"
	"github.com/pos/backoffice/internal/infrastructure/config"
	"github.com/pos/backoffice/internal/infrastructure/persistence"
	"github.com/pos/backoffice/internal/infrastructure/persistence/models"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/pos/backoffice/internal/interfaces/http/handler"
	"github.com/pos/backoffice/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type noopProvisioner struct{}

func (noopProvisioner) EnsureDatabase(context.Context, string) (bool, error) { return true, nil }

type autoMigrator struct{}

func (autoMigrator) MigrateTenant(ctx context.Context, pool *tenancy.Pool) error {
	return pool.DB.WithContext(ctx).AutoMigrate(models.TenantModels()...)
}

func openSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

type apiServer struct {
	engine *gin.Engine
	jwt    *auth.JWTService
}

// newAPIServer mounts the full route table over sqlite databases with real
// JWT authentication and tenant resolution.
func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())
	dir := t.TempDir()

	masterDB, err := openSQLite(filepath.Join(dir, "master.db"))
	require.NoError(t, err)
	require.NoError(t, masterDB.AutoMigrate(models.MasterModels()...))
	require.NoError(t, masterDB.Create(&models.CurrencyModel{Code: "EUR", Name: "Euro", Symbol: "€"}).Error)
	master := &tenancy.Pool{Name: persistence.MasterPoolName, DB: masterDB}
	t.Cleanup(func() { _ = master.Close() })

	registry := tenancy.NewRegistry(tenancy.PoolFactoryFunc(func(_ context.Context, tenantID string) (*tenancy.Pool, error) {
		db, err := openSQLite(filepath.Join(dir, tenantID+".db"))
		if err != nil {
			return nil, err
		}
		return &tenancy.Pool{Name: "tenant-pool-" + tenantID, TenantID: tenantID, DB: db}, nil
	}), nil)
	t.Cleanup(func() { _ = registry.Close() })

	store := cache.NewInMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	routing := tenancy.NewRoutingSource(master, registry)
	businessRepo := persistence.NewGormBusinessRepository(masterDB)
	lookups := cache.NewTenantLookupCache(businessRepo, store, time.Minute, nil)
	lifecycle := apptenancy.NewLifecycleService(registry, noopProvisioner{}, autoMigrator{}, businessRepo, nil, apptenancy.LifecycleConfig{}, nil)
	businesses := appidentity.NewBusinessService(businessRepo, persistence.NewGormCurrencyRepository(masterDB), lifecycle, lookups, nil)
	sessions := tenancy.NewSessionFactory(tenancy.NewConnectionProvider(master, registry), tenancy.ContextResolver{}, routing)

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "router-test-secret-with-32-characters",
		AccessTokenExpiration: time.Hour,
		Issuer:                "pos-backoffice-test",
	})

	engine := gin.New()
	engine.Use(middleware.RequestID())
	Mount(engine, Handlers{
		System:      handler.NewSystemHandler(handler.SystemInfo{Name: "pos-backoffice", Version: "test"}, routing, sessions),
		Businesses:  handler.NewBusinessHandler(businesses),
		TenantAdmin: handler.NewTenantAdminHandler(lifecycle, businesses),
		Products:    handler.NewProductHandler(appcatalog.NewProductService(persistence.NewGormProductRepository(routing))),
	}, Security{
		Authenticate: middleware.JWTAuthMiddleware(jwtService),
		ResolveTenant: middleware.TenantResolution(middleware.TenantResolutionConfig{
			Lookup:             lookups,
			ExemptPathPrefixes: []string{"/health", "/api/v1/admin", "/api/v1/onboarding", "/api/v1/system"},
		}),
	})

	return &apiServer{engine: engine, jwt: jwtService}
}

func (s *apiServer) token(t *testing.T, email string, roles ...string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(auth.GenerateTokenInput{Email: email, Roles: roles})
	require.NoError(t, err)
	return token
}

func (s *apiServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (s *apiServer) onboard(t *testing.T, token, name string) string {
	t.Helper()
	w := s.do(http.MethodPost, "/api/v1/onboarding/businesses", token, map[string]string{
		"name":          name,
		"currency_code": "EUR",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result appidentity.RegisterBusinessResult
	decodeData(t, w, &result)
	return result.Business.TenantID
}

func TestMount_TenantIsolation(t *testing.T) {
	srv := newAPIServer(t)
	alice := srv.token(t, "alice@cafe.test", auth.RoleOwner)
	bob := srv.token(t, "bob@bar.test", auth.RoleOwner)

	aliceTenant := srv.onboard(t, alice, "Alice Cafe")
	bobTenant := srv.onboard(t, bob, "Bob Bar")
	require.NotEqual(t, aliceTenant, bobTenant)

	w := srv.do(http.MethodPost, "/api/v1/catalog/products", alice, map[string]any{
		"sku": "LAT-1", "name": "Latte", "price": 3.2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var products []appcatalog.ProductResponse
	w = srv.do(http.MethodGet, "/api/v1/catalog/products", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "LAT-1", products[0].SKU)

	w = srv.do(http.MethodGet, "/api/v1/catalog/products", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &products)
	assert.Empty(t, products)

	var session handler.TenantSessionResponse
	w = srv.do(http.MethodGet, "/api/v1/me/tenant", bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &session)
	assert.Equal(t, bobTenant, session.TenantID)
	assert.Equal(t, bobTenant, session.SessionTenantID)
	assert.Equal(t, "tenant-pool-"+bobTenant, session.Pool)
}

func TestMount_Authentication(t *testing.T) {
	srv := newAPIServer(t)

	t.Run("public endpoints", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health", "", nil).Code)
		assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/system/info", "", nil).Code)
	})

	t.Run("missing token", func(t *testing.T) {
		for _, path := range []string{"/api/v1/catalog/products", "/api/v1/admin/tenants", "/api/v1/onboarding/currencies"} {
			assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodGet, path, "", nil).Code, path)
		}
	})

	t.Run("caller without a business", func(t *testing.T) {
		w := srv.do(http.MethodGet, "/api/v1/catalog/products", srv.token(t, "nobody@nowhere.test"), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		env := decodeData(t, w, nil)
		assert.Equal(t, "TENANT_NOT_RESOLVED", env.Error.Code)
	})

	t.Run("onboarding does not need a tenant", func(t *testing.T) {
		w := srv.do(http.MethodGet, "/api/v1/onboarding/currencies", srv.token(t, "nobody@nowhere.test"), nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMount_Admin(t *testing.T) {
	srv := newAPIServer(t)
	root := srv.token(t, "root@backoffice.test", auth.RoleSuperuser)
	owner := srv.token(t, "owner@shop.test", auth.RoleOwner)
	tenantID := srv.onboard(t, owner, "Corner Shop")

	t.Run("requires superuser", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, srv.do(http.MethodGet, "/api/v1/admin/tenants", owner, nil).Code)
	})

	t.Run("lists tenants", func(t *testing.T) {
		w := srv.do(http.MethodGet, "/api/v1/admin/tenants", root, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var list handler.TenantListResponse
		decodeData(t, w, &list)
		assert.Equal(t, []string{tenantID}, list.Tenants)
	})

	t.Run("updates every schema", func(t *testing.T) {
		w := srv.do(http.MethodPost, "/api/v1/admin/tenants/schema", root, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var summary handler.SchemaUpdateSummaryResponse
		decodeData(t, w, &summary)
		assert.Equal(t, 1, summary.Succeeded)
		assert.True(t, summary.Completed)
	})

	t.Run("rejects malformed identifiers", func(t *testing.T) {
		w := srv.do(http.MethodPost, "/api/v1/admin/tenants/Bad-Id/schema", root, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("deactivation stops resolution", func(t *testing.T) {
		require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/catalog/products", owner, nil).Code)

		w := srv.do(http.MethodPost, "/api/v1/admin/tenants/"+tenantID+"/deactivate", root, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = srv.do(http.MethodGet, "/api/v1/catalog/products", owner, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

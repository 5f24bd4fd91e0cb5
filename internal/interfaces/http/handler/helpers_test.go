package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	appcatalog "github.com/pos/backoffice/internal/application/catalog"
	appidentity "github.com/pos/backoffice/internal/application/identity"
	apptenancy "github.com/pos/backoffice/internal/application/tenancy"
	"github.com/pos/backoffice/internal/infrastructure/auth"
	"github.com/pos/backoffice/internal/infrastructure/persistence"
	"github.com/pos/backoffice/internal/infrastructure/persistence/models"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/pos/backoffice/internal/interfaces/http/dto"
	"github.com/pos/backoffice/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

// fakeProvisioner records which tenant databases were "created".
type fakeProvisioner struct {
	mu      sync.Mutex
	created map[string]bool
	fail    map[string]error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{created: map[string]bool{}, fail: map[string]error{}}
}

func (p *fakeProvisioner) EnsureDatabase(_ context.Context, tenantID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[tenantID]; err != nil {
		return false, err
	}
	if p.created[tenantID] {
		return false, nil
	}
	p.created[tenantID] = true
	return true, nil
}

// gormMigrator creates the tenant tables with AutoMigrate.
type gormMigrator struct{}

func (gormMigrator) MigrateTenant(ctx context.Context, pool *tenancy.Pool) error {
	return pool.DB.WithContext(ctx).AutoMigrate(models.TenantModels()...)
}

func openSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

// testEnv is the full service stack over sqlite files: one master database
// and one file per tenant.
type testEnv struct {
	master      *gorm.DB
	registry    *tenancy.Registry
	routing     *tenancy.RoutingSource
	sessions    *tenancy.SessionFactory
	provisioner *fakeProvisioner
	lifecycle   *apptenancy.LifecycleService
	businesses  *appidentity.BusinessService
	products    *appcatalog.ProductService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	masterDB, err := openSQLite(filepath.Join(dir, "master.db"))
	require.NoError(t, err)
	require.NoError(t, masterDB.AutoMigrate(models.MasterModels()...))
	require.NoError(t, masterDB.Create(&models.CurrencyModel{Code: "USD", Name: "US Dollar", Symbol: "$"}).Error)
	t.Cleanup(func() {
		if sqlDB, err := masterDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	master := &tenancy.Pool{Name: persistence.MasterPoolName, DB: masterDB}

	registry := tenancy.NewRegistry(tenancy.PoolFactoryFunc(func(_ context.Context, tenantID string) (*tenancy.Pool, error) {
		db, err := openSQLite(filepath.Join(dir, tenantID+".db"))
		if err != nil {
			return nil, err
		}
		return &tenancy.Pool{Name: "tenant-pool-" + tenantID, TenantID: tenantID, DB: db}, nil
	}), nil)
	t.Cleanup(func() { _ = registry.Close() })

	routing := tenancy.NewRoutingSource(master, registry)
	businessRepo := persistence.NewGormBusinessRepository(masterDB)
	provisioner := newFakeProvisioner()
	lifecycle := apptenancy.NewLifecycleService(registry, provisioner, gormMigrator{}, businessRepo, nil, apptenancy.LifecycleConfig{}, nil)

	return &testEnv{
		master:      masterDB,
		registry:    registry,
		routing:     routing,
		sessions:    tenancy.NewSessionFactory(tenancy.NewConnectionProvider(master, registry), tenancy.ContextResolver{}, routing),
		provisioner: provisioner,
		lifecycle:   lifecycle,
		businesses:  appidentity.NewBusinessService(businessRepo, persistence.NewGormCurrencyRepository(masterDB), lifecycle, nil, nil),
		products:    appcatalog.NewProductService(persistence.NewGormProductRepository(routing)),
	}
}

// registerBusiness onboards a business owned by email and returns its tenant.
func (e *testEnv) registerBusiness(t *testing.T, name, email string) appidentity.BusinessResponse {
	t.Helper()
	result, err := e.businesses.RegisterBusiness(context.Background(), appidentity.RegisterBusinessRequest{
		Name:         name,
		OwnerEmail:   email,
		CurrencyCode: "USD",
	})
	require.NoError(t, err)
	return result.Business
}

// asCaller installs claims the way the JWT middleware does.
func asCaller(email string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTClaimsKey, &auth.Claims{Email: email, Roles: roles})
		c.Next()
	}
}

// inTenant installs a resolved tenant the way the resolution filter does.
func inTenant(tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(tenancy.WithTenant(c.Request.Context(), tenantID))
		c.Set(middleware.TenantIDKey, tenantID)
		c.Next()
	}
}

func doRequest(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// decode unmarshals the envelope and its data into out (which may be nil).
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

var errBoom = errors.New("dial tcp 10.0.0.7:5432: connect: connection refused (dbname=tenant_secret)")

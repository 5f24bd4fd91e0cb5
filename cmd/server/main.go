package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pos/backoffice/internal/application/catalog"
	"github.com/pos/backoffice/internal/application/identity"
	apptenancy "github.com/pos/backoffice/internal/application/tenancy"
	"github.com/pos/backoffice/internal/infrastructure/auth"
	"github.com/pos/backoffice/internal/infrastructure/cache"
	"github.com/pos/backoffice/internal/infrastructure/config"
	"github.com/pos/backoffice/internal/infrastructure/logger"
	"github.com/pos/backoffice/internal/infrastructure/migration"
	"github.com/pos/backoffice/internal/infrastructure/persistence"
	"github.com/pos/backoffice/internal/infrastructure/telemetry"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/pos/backoffice/internal/interfaces/http/handler"
	"github.com/pos/backoffice/internal/interfaces/http/middleware"
	"github.com/pos/backoffice/internal/interfaces/http/router"
	"github.com/pos/backoffice/migrations"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting POS back office",
		zap.String("app", cfg.App.Name),
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = meterProvider.Shutdown(shutdownCtx)
		_ = tracerProvider.Shutdown(shutdownCtx)
		_ = loggerProvider.Shutdown(shutdownCtx)
	}()
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		log = loggerProvider.Bridge(log, cfg.Telemetry.ServiceName, level)
	}

	// Connection pools: master plus one lazily opened pool per tenant
	poolOpts := persistence.PoolOptions{
		Logger: logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh)),
		Tracing: telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log),
	}

	masterPool, err := persistence.OpenMasterPool(ctx, &cfg.Database, poolOpts)
	if err != nil {
		log.Fatal("Failed to connect to master database", zap.Error(err))
	}
	defer func() {
		if err := masterPool.Close(); err != nil {
			log.Error("Error closing master database", zap.Error(err))
		}
	}()
	log.Info("Master database connected", zap.String("database", cfg.Database.DBName))

	registry := tenancy.NewRegistry(
		persistence.NewTenantPoolFactory(cfg.Tenancy, poolOpts), log,
		tenancy.WithOpenTimeout(cfg.Tenancy.PoolOpenTimeout),
	)
	defer func() {
		if err := registry.Close(); err != nil {
			log.Error("Error closing tenant pools", zap.Error(err))
		}
	}()
	routing := tenancy.NewRoutingSource(masterPool, registry)
	sessions := tenancy.NewSessionFactory(tenancy.NewConnectionProvider(masterPool, registry), tenancy.ContextResolver{}, routing)

	tenancyMetrics, err := telemetry.NewTenancyMetrics(meterProvider.Meter("tenancy"), registry)
	if err != nil {
		log.Fatal("Failed to register tenancy metrics", zap.Error(err))
	}
	defer func() {
		_ = tenancyMetrics.Close()
	}()

	masterSQL, err := masterPool.SQL()
	if err != nil {
		log.Fatal("Failed to access master connection pool", zap.Error(err))
	}

	// Cache
	store, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer func() {
		_ = store.Close()
	}()

	// Repositories and services
	businessRepo := persistence.NewGormBusinessRepository(masterPool.DB)
	currencyRepo := persistence.NewGormCurrencyRepository(masterPool.DB)
	productRepo := persistence.NewGormProductRepository(routing)
	tenantLookups := cache.NewTenantLookupCache(businessRepo, store, cfg.Tenancy.LookupCacheTTL, log)

	lifecycle := apptenancy.NewLifecycleService(
		registry,
		persistence.NewDatabaseAdmin(masterSQL, cfg.Tenancy.User, log),
		migration.NewSchemaMigrator(migrations.FS, migrations.TenantDir, log),
		businessRepo,
		tenancyMetrics,
		apptenancy.LifecycleConfig{
			UpdateSchemaOnStartup: cfg.Tenancy.UpdateSchemaOnStartup,
			WarmPoolsOnStartup:    cfg.Tenancy.WarmPoolsOnStartup,
			WarmPoolConcurrency:   cfg.Tenancy.WarmPoolConcurrency,
		},
		log,
	)
	businessService := identity.NewBusinessService(businessRepo, currencyRepo, lifecycle, tenantLookups, log)
	productService := catalog.NewProductService(productRepo)
	jwtService := auth.NewJWTService(cfg.JWT)

	if _, err := lifecycle.RunStartupSchemaUpdate(ctx); err != nil {
		log.Fatal("Startup schema update failed", zap.Error(err))
	}
	lifecycle.WarmPoolsOnStartup(ctx)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up request validation", zap.Error(err))
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
		SkipPaths:   []string{"/health"},
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.SpanErrorMarker())
	if cfg.Telemetry.MetricsEnabled {
		httpMetrics, err := middleware.HTTPMetrics(meterProvider.Meter("http.server"))
		if err != nil {
			log.Fatal("Failed to register HTTP metrics", zap.Error(err))
		}
		engine.Use(httpMetrics)
	}
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		go limiter.Run(ctx)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.HTTP.RateLimitRPS),
			zap.Int("burst", cfg.HTTP.RateLimitBurst),
		)
	}

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log
	router.Mount(engine, router.Handlers{
		System: handler.NewSystemHandler(handler.SystemInfo{
			Name:    cfg.App.Name,
			Version: version,
			Env:     cfg.App.Env,
		}, routing, sessions),
		Businesses:  handler.NewBusinessHandler(businessService),
		TenantAdmin: handler.NewTenantAdminHandler(lifecycle, businessService),
		Products:    handler.NewProductHandler(productService),
	}, router.Security{
		Authenticate: middleware.JWTAuthMiddlewareWithConfig(jwtConfig),
		ResolveTenant: middleware.TenantResolution(middleware.TenantResolutionConfig{
			Lookup:             tenantLookups,
			ExemptPathPrefixes: cfg.Tenancy.ExemptPathPrefixes,
			Logger:             log,
		}),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/lib/pq"
	apptenancy "github.com/pos/backoffice/internal/application/tenancy"
	"github.com/pos/backoffice/internal/infrastructure/config"
	"github.com/pos/backoffice/internal/infrastructure/logger"
	"github.com/pos/backoffice/internal/infrastructure/migration"
	"github.com/pos/backoffice/internal/infrastructure/persistence"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/pos/backoffice/migrations"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Migrations directory used by create")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Commands that need no database
	switch args[0] {
	case "create":
		if len(args) < 3 {
			log.Fatal("Usage: migrate create <master|tenant> <name>")
		}
		scope, err := migration.ParseScope(args[1])
		if err != nil {
			log.Fatal("Invalid scope", zap.Error(err))
		}
		mf, err := migration.CreateMigration(migrationsPath, scope, args[2])
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("scope", string(mf.Scope)),
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return
	case "list":
		if len(args) < 2 {
			log.Fatal("Usage: migrate list <master|tenant>")
		}
		scope, err := migration.ParseScope(args[1])
		if err != nil {
			log.Fatal("Invalid scope", zap.Error(err))
		}
		names, err := migration.ListMigrations(migrations.FS, string(scope))
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		log.Info("Embedded migrations", zap.String("scope", string(scope)), zap.Int("count", len(names)))
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	switch args[0] {
	case "master":
		if len(args) < 2 {
			log.Fatal("Usage: migrate master <up|down|version|step <n>|force <version>>")
		}
		runMaster(ctx, cfg, log, args[1:])
	case "tenant":
		if len(args) < 3 {
			log.Fatal("Usage: migrate tenant <tenant_id> <up|version|provision>")
		}
		runTenant(ctx, cfg, log, args[1], args[2])
	case "all-tenants":
		if len(args) < 2 || args[1] != "up" {
			log.Fatal("Usage: migrate all-tenants up")
		}
		runAllTenants(ctx, cfg, log)
	default:
		log.Error("Unknown command", zap.String("command", args[0]))
		printUsage()
		os.Exit(1)
	}
}

func runMaster(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open master database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping master database", zap.Error(err))
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		log.Fatal("Failed to acquire master connection", zap.Error(err))
	}
	m, err := migration.NewWithConnection(ctx, conn, cfg.Database.DBName, migrations.FS, migrations.MasterDir, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer func() { _ = m.Close() }()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "step":
		if len(args) < 2 {
			log.Fatal("Usage: migrate master step <n>")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatal("Invalid step count", zap.String("value", args[1]))
		}
		err = m.Steps(n)
	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: migrate master force <version>")
		}
		v, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatal("Invalid version number", zap.String("value", args[1]))
		}
		log.Warn("Forcing master migration version")
		err = m.Force(v)
	case "version":
		reportVersion(log, m.Version)
		return
	default:
		log.Fatal("Unknown master command", zap.String("command", args[0]))
	}
	if err != nil {
		log.Fatal("Master migration failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func runTenant(ctx context.Context, cfg *config.Config, log *zap.Logger, tenantID, command string) {
	if err := tenancy.ValidateIdentifier(tenantID); err != nil {
		log.Fatal("Invalid tenant identifier", zap.Error(err))
	}
	master, registry, lifecycle := openLifecycle(ctx, cfg, log)
	defer closePools(log, master, registry)

	switch command {
	case "up":
		result, err := lifecycle.UpdateSchemaForTenant(ctx, tenantID)
		if err != nil {
			log.Fatal("Tenant schema update failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		log.Info(result.Message, zap.Duration("elapsed", result.Elapsed))
	case "provision":
		result, err := lifecycle.ProvisionTenant(ctx, tenantID)
		if err != nil {
			log.Fatal("Tenant provisioning failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		log.Info(result.Message, zap.Bool("database_created", result.DatabaseCreated))
	case "version":
		pool, err := registry.Get(ctx, tenantID)
		if err != nil {
			log.Fatal("Failed to open tenant pool", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		migrator := migration.NewSchemaMigrator(migrations.FS, migrations.TenantDir, log)
		reportVersion(log.With(zap.String("tenant_id", tenantID)), func() (uint, bool, error) {
			return migrator.Version(ctx, pool)
		})
	default:
		log.Fatal("Unknown tenant command", zap.String("command", command))
	}
}

func runAllTenants(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	master, registry, lifecycle := openLifecycle(ctx, cfg, log)
	defer closePools(log, master, registry)

	summary, err := lifecycle.UpdateSchemaForAllTenants(ctx)
	if err != nil {
		log.Fatal("Failed to list tenants", zap.Error(err))
	}
	log.Info(summary.Message,
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	if summary.Failed > 0 || !summary.Completed {
		closePools(log, master, registry)
		os.Exit(2)
	}
}

// openLifecycle connects to the master database and builds the tenant
// lifecycle service the server uses, without HTTP or caching.
func openLifecycle(ctx context.Context, cfg *config.Config, log *zap.Logger) (*tenancy.Pool, *tenancy.Registry, *apptenancy.LifecycleService) {
	opts := persistence.PoolOptions{
		Logger: logger.NewGormLogger(log, logger.MapGormLogLevel("warn")),
	}
	master, err := persistence.OpenMasterPool(ctx, &cfg.Database, opts)
	if err != nil {
		log.Fatal("Failed to connect to master database", zap.Error(err))
	}
	masterSQL, err := master.SQL()
	if err != nil {
		log.Fatal("Failed to access master connection pool", zap.Error(err))
	}

	registry := tenancy.NewRegistry(
		persistence.NewTenantPoolFactory(cfg.Tenancy, opts), log,
		tenancy.WithOpenTimeout(cfg.Tenancy.PoolOpenTimeout),
	)
	lifecycle := apptenancy.NewLifecycleService(
		registry,
		persistence.NewDatabaseAdmin(masterSQL, cfg.Tenancy.User, log),
		migration.NewSchemaMigrator(migrations.FS, migrations.TenantDir, log),
		persistence.NewGormBusinessRepository(master.DB),
		nil,
		apptenancy.LifecycleConfig{},
		log,
	)
	return master, registry, lifecycle
}

func closePools(log *zap.Logger, master *tenancy.Pool, registry *tenancy.Registry) {
	if err := registry.Close(); err != nil {
		log.Warn("Error closing tenant pools", zap.Error(err))
	}
	if err := master.Close(); err != nil {
		log.Warn("Error closing master database", zap.Error(err))
	}
}

func reportVersion(log *zap.Logger, version func() (uint, bool, error)) {
	v, dirty, err := version()
	if err != nil {
		log.Fatal("Failed to get version", zap.Error(err))
	}
	if v == 0 {
		log.Info("No migrations applied")
		return
	}
	log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
}

func printUsage() {
	fmt.Println(`POS back office migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  master up                      Apply pending master migrations
  master down                    Roll back all master migrations
  master step <n>                Apply n master migrations (negative rolls back)
  master force <version>         Force the master version (use with caution)
  master version                 Show the master schema version
  tenant <id> up                 Migrate one tenant database
  tenant <id> provision          Create the tenant database if missing, then migrate it
  tenant <id> version            Show one tenant's schema version
  all-tenants up                 Migrate every tenant; failures do not stop the batch
  create <master|tenant> <name>  Create a new migration file pair
  list <master|tenant>           List the embedded migrations

Flags:
  -path string                   Migrations directory for create (default: ./migrations)
  -log-level string              Log level: debug, info, warn, error (default: info)

Configuration is read from config.toml and POS_* environment variables.`)
}

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.uber.org/zap"
)

// pgDuplicateDatabase is SQLSTATE duplicate_database.
const pgDuplicateDatabase = "42P04"

// DatabaseAdmin creates tenant databases through an administrative
// connection, normally the master pool.
type DatabaseAdmin struct {
	db     *sql.DB
	owner  string
	logger *zap.Logger
}

// NewDatabaseAdmin creates a DatabaseAdmin. When owner is set, new
// databases are owned by that role.
func NewDatabaseAdmin(db *sql.DB, owner string, logger *zap.Logger) *DatabaseAdmin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseAdmin{db: db, owner: owner, logger: logger.Named("database_admin")}
}

// DatabaseExists reports whether a database named name exists.
func (a *DatabaseAdmin) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := a.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check database %q: %w", name, err)
	}
	return exists, nil
}

// EnsureDatabase creates tenantID's database unless it already exists.
// created is false when the database was already there, including when a
// concurrent caller created it first.
func (a *DatabaseAdmin) EnsureDatabase(ctx context.Context, tenantID string) (created bool, err error) {
	if err := tenancy.ValidateIdentifier(tenantID); err != nil {
		return false, err
	}

	exists, err := a.DatabaseExists(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if exists {
		a.logger.Debug("Tenant database already exists", zap.String("tenant_id", tenantID))
		return false, nil
	}

	stmt := "CREATE DATABASE " + pq.QuoteIdentifier(tenantID)
	if a.owner != "" {
		stmt += " OWNER " + pq.QuoteIdentifier(a.owner)
	}
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return false, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgDuplicateDatabase {
			return false, nil
		}
		return false, fmt.Errorf("create database %q: %w", tenantID, err)
	}

	a.logger.Info("Tenant database created", zap.String("tenant_id", tenantID))
	return true, nil
}

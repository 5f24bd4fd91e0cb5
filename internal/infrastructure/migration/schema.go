package migration

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"go.uber.org/zap"
)

// SchemaMigrator applies one migration set to a live pool.
type SchemaMigrator struct {
	fsys   fs.FS
	dir    string
	logger *zap.Logger
}

// NewSchemaMigrator creates a SchemaMigrator for the migrations in dir of fsys.
func NewSchemaMigrator(fsys fs.FS, dir string, logger *zap.Logger) *SchemaMigrator {
	return &SchemaMigrator{fsys: fsys, dir: dir, logger: loggerOrNop(logger).Named("schema_migrator")}
}

// MigrateTenant brings pool's database to the latest version. It borrows
// one connection from the pool for the duration of the run.
func (s *SchemaMigrator) MigrateTenant(ctx context.Context, pool *tenancy.Pool) error {
	m, err := s.open(ctx, pool)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			s.logger.Warn("Failed to close migrator", zap.String("pool", pool.Name), zap.Error(err))
		}
	}()
	return m.Up()
}

// Version reports pool's current schema version.
func (s *SchemaMigrator) Version(ctx context.Context, pool *tenancy.Pool) (uint, bool, error) {
	m, err := s.open(ctx, pool)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = m.Close() }()
	return m.Version()
}

func (s *SchemaMigrator) open(ctx context.Context, pool *tenancy.Pool) (*Migrator, error) {
	sqlDB, err := pool.SQL()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection from %s: %w", pool.Name, err)
	}

	database := pool.TenantID
	if database == "" {
		database = pool.Name
	}
	m, err := NewWithConnection(ctx, conn, database, s.fsys, s.dir, s.logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return m, nil
}

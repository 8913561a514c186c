package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"redistrict/pkg/logger"
)

// MigrationState состояние одной миграции
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// Migrator применяет SQL-миграции из fs.FS через goose
type Migrator struct {
	db       *sql.DB
	provider *goose.Provider
}

// NewMigrator создаёт мигратор; dir подкаталог с миграциями внутри fsys
func NewMigrator(pool *pgxpool.Pool, fsys fs.FS, dir string) (*Migrator, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations dir %q: %w", dir, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		_ = db.Close() //nolint:errcheck // провайдер не создан
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return &Migrator{db: db, provider: provider}, nil
}

// Up применяет все миграции
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		logger.Log.Info("Migration applied",
			"version", r.Source.Version,
			"path", r.Source.Path,
			"duration", r.Duration,
		)
	}
	logger.Log.Info("Migrations applied successfully", "count", len(results))
	return nil
}

// Down откатывает последнюю миграцию
func (m *Migrator) Down(ctx context.Context) error {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	logger.Log.Info("Migration rolled back", "version", result.Source.Version)
	return nil
}

// Status возвращает состояние всех известных миграций
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

// Close освобождает *sql.DB поверх пула; сам пул не закрывается
func (m *Migrator) Close() error {
	return m.db.Close()
}

// RunMigrations применяет миграции, если включено auto_migrate
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, autoMigrate bool, fsys fs.FS, dir string) error {
	if !autoMigrate {
		logger.Log.Info("Auto-migration is disabled")
		return nil
	}

	migrator, err := NewMigrator(pool, fsys, dir)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck

	return migrator.Up(ctx)
}

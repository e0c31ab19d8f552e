package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"coassign/pkg/config"
	"coassign/pkg/logger"
)

// Migrator применяет goose-миграции из встроенной файловой системы
type Migrator struct {
	db       *sql.DB
	provider *goose.Provider
}

// NewMigrator создаёт мигратор. dir - каталог внутри fsys с *.sql файлами.
func NewMigrator(pool *pgxpool.Pool, fsys fs.FS, dir string) (*Migrator, error) {
	return NewMigratorFromDB(stdlib.OpenDBFromPool(pool), fsys, dir)
}

// NewMigratorFromDB создаёт мигратор поверх готового *sql.DB
func NewMigratorFromDB(db *sql.DB, fsys fs.FS, dir string) (*Migrator, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return &Migrator{db: db, provider: provider}, nil
}

// Up применяет все ожидающие миграции
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		logger.Log.Info("Migration applied",
			"version", r.Source.Version,
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

// Pending возвращает версии ещё не применённых миграций
func (m *Migrator) Pending(ctx context.Context) ([]int64, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}

	var pending []int64
	for _, s := range statuses {
		if s.State == goose.StatePending {
			pending = append(pending, s.Source.Version)
		}
	}
	return pending, nil
}

// Close закрывает обёртку *sql.DB. Пул pgx остаётся открытым.
func (m *Migrator) Close() error {
	return m.db.Close()
}

// RunMigrations запускает миграции если включено в конфигурации
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig, fsys fs.FS, dir string) error {
	if !cfg.AutoMigrate {
		logger.Log.Info("Auto-migration is disabled")
		return nil
	}

	migrator, err := NewMigrator(pool, fsys, dir)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up(ctx)
}

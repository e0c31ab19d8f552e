// Package migrations встраивает SQL-миграции схемы истории запусков.
package migrations

import "embed"

// PostgresMigrations goose-миграции для PostgreSQL, каталог "postgres"
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS

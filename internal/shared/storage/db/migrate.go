package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

func useEmbedded() error {
	goose.SetBaseFS(migrationFiles)
	return goose.SetDialect("postgres")
}

// RunMigrations applies every pending migration. A nil database is a no-op
// so memory-backed dev runs can call it unconditionally.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	if err := useEmbedded(); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, migrationsDir)
}

// RollbackMigration undoes the most recent migration.
func RollbackMigration(ctx context.Context, database *sql.DB) error {
	if err := useEmbedded(); err != nil {
		return err
	}
	return goose.DownContext(ctx, database, migrationsDir)
}

// MigrationStatus logs the applied state of each migration.
func MigrationStatus(ctx context.Context, database *sql.DB) error {
	if err := useEmbedded(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, database, migrationsDir)
}

// SchemaVersion reports the latest applied migration version.
func SchemaVersion(ctx context.Context, database *sql.DB) (int64, error) {
	if err := useEmbedded(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, database)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

package main

// Manage the schema:
//   go run ./cmd/migrate [up|down|status|version]

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"skill-recommender/internal/shared/config"
	"skill-recommender/internal/shared/storage/db"
	"skill-recommender/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	ctx := context.Background()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := run(ctx, command, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err})
		sqlDB.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, sqlDB *sql.DB) error {
	switch command {
	case "up":
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return err
		}
	case "down":
		if err := db.RollbackMigration(ctx, sqlDB); err != nil {
			return err
		}
	case "status":
		return db.MigrationStatus(ctx, sqlDB)
	case "version":
	default:
		return fmt.Errorf("unknown command %q (want up, down, status or version)", command)
	}
	version, err := db.SchemaVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	telemetry.Info("migrate.completed", map[string]any{"command": command, "version": version})
	return nil
}

package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"slotswapper/pkg/logger"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var Schema string

// RunMigration applies the schema. Every statement is idempotent.
func RunMigration(ctx context.Context, db *sqlx.DB, log *logger.Logger) error {
	log.Info("Running PostgreSQL migrations")

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	log.Info("All PostgreSQL migrations applied")
	return nil
}

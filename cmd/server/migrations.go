package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskhub-api/internal/platform/sqlstore"
)

// runMigrations executes one migration command against db.
func runMigrations(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect, logger *slog.Logger, command string) error {
	migrator, err := sqlstore.NewMigrator(db, dialect, logger)
	if err != nil {
		return err
	}

	logger.Info("executing migrations", slog.String("command", command), slog.String("dialect", dialect.Name))
	if err := migrator.Run(ctx, command); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}

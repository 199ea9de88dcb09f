package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskhub-api/internal/config"
	"github.com/phrazzld/taskhub-api/internal/platform/sqlstore"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

var dbCounter atomic.Int64

// OpenSQLite opens a private in-memory SQLite database with every migration
// applied. The database is closed when the test ends.
func OpenSQLite(t *testing.T) (*sql.DB, sqlstore.Dialect) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	return open(t, config.DatabaseConfig{Driver: config.DriverSQLite, URL: dsn})
}

// OpenIntegration connects to the integration database and migrates it.
// The test is skipped when DATABASE_URL is not set.
func OpenIntegration(t *testing.T) (*sql.DB, sqlstore.Dialect) {
	t.Helper()

	if ShouldSkipDatabaseTest() {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}

	return open(t, config.DatabaseConfig{
		Driver:                 GetTestDatabaseDriver(),
		URL:                    GetTestDatabaseURL(),
		MaxOpenConns:           10,
		MaxIdleConns:           5,
		ConnMaxLifetimeMinutes: 5,
	})
}

func open(t *testing.T, cfg config.DatabaseConfig) (*sql.DB, sqlstore.Dialect) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, dialect, err := sqlstore.Open(ctx, cfg, quiet)
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { CleanupDB(t, db) })

	migrator, err := sqlstore.NewMigrator(db, dialect, quiet)
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, migrator.Up(ctx), "Failed to run migrations")

	return db, dialect
}

// WithTx executes a test function within a transaction, automatically rolling back
// after the test completes. This ensures test isolation and prevents side effects.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		// sql.ErrTxDone is expected if tx is already committed or rolled back
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// CleanupDB safely closes a database connection.
func CleanupDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}
}

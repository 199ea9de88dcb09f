package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/phrazzld/taskhub-api/internal/config"
)

const pingTimeout = 5 * time.Second

// Open establishes a connection pool for the configured driver, applies the
// pool settings and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, Dialect, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	dsn, err := dialect.normalizeDSN(cfg.URL)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open database connection: %w", err)
	}

	if dialect.Name == config.DriverSQLite {
		// One connection: SQLite allows a single writer and in-memory
		// databases are private to their connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		slog.String("driver", dialect.Name))
	return db, dialect, nil
}

// normalizeDSN adds the driver options the store relies on.
func (d Dialect) normalizeDSN(dsn string) (string, error) {
	switch d.Name {
	case config.DriverMySQL:
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		mc.ParseTime = true
		mc.Loc = time.UTC
		// Report matched rows, not changed rows, so updates that rewrite
		// identical values are not mistaken for missing tasks.
		mc.ClientFoundRows = true
		return mc.FormatDSN(), nil
	case config.DriverSQLite:
		var opts []string
		if !strings.Contains(dsn, "foreign_keys") {
			opts = append(opts, "_pragma=foreign_keys(1)")
		}
		if !strings.Contains(dsn, "busy_timeout") {
			opts = append(opts, "_pragma=busy_timeout(5000)")
		}
		if len(opts) == 0 {
			return dsn, nil
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + strings.Join(opts, "&"), nil
	default:
		return dsn, nil
	}
}

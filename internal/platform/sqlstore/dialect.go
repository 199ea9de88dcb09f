package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/phrazzld/taskhub-api/internal/config"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	// Name is the config driver name (pgx, mysql, sqlite).
	Name string
	// DriverName is the database/sql driver registered for the dialect.
	DriverName string
	// Goose is the goose dialect used for migrations.
	Goose goose.Dialect
	// MigrationsDir is the embedded directory holding the dialect's migrations.
	MigrationsDir string

	numberedPlaceholders bool
	insertReturning      bool
	lockClause           string
	titleMatch           string
}

// Postgres, MySQL and SQLite are the supported dialects.
var (
	Postgres = Dialect{
		Name:                 config.DriverPostgres,
		DriverName:           "pgx",
		Goose:                goose.DialectPostgres,
		MigrationsDir:        "migrations/postgres",
		numberedPlaceholders: true,
		insertReturning:      true,
		lockClause:           " FOR UPDATE",
		titleMatch:           "title ILIKE ? ESCAPE '!'",
	}
	MySQL = Dialect{
		Name:          config.DriverMySQL,
		DriverName:    "mysql",
		Goose:         goose.DialectMySQL,
		MigrationsDir: "migrations/mysql",
		lockClause:    " FOR UPDATE",
		titleMatch:    "LOWER(title) LIKE LOWER(?) ESCAPE '!'",
	}
	// SQLite serializes writers at the database level, so it has no row lock clause.
	SQLite = Dialect{
		Name:            config.DriverSQLite,
		DriverName:      "sqlite",
		Goose:           goose.DialectSQLite3,
		MigrationsDir:   "migrations/sqlite",
		insertReturning: true,
		titleMatch:      "title LIKE ? ESCAPE '!'",
	}
)

// DialectFor returns the dialect for a config driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverPostgres:
		return Postgres, nil
	case config.DriverMySQL:
		return MySQL, nil
	case config.DriverSQLite:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites ? placeholders into the dialect's native form.
// Queries in this package never contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numberedPlaceholders {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// likePattern escapes LIKE wildcards in s and wraps it for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(s) + "%"
}

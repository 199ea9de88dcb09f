// Package sqlstore implements the store interfaces on database/sql.
//
// One implementation serves PostgreSQL (pgx stdlib driver), MySQL
// (go-sql-driver/mysql) and SQLite (modernc.org/sqlite); a Dialect value
// captures the SQL differences between them. Schema migrations for each
// dialect are embedded and applied with goose.
package sqlstore

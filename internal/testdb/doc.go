// Package testdb provides database helpers for tests.
//
// OpenSQLite returns a private, fully migrated in-memory SQLite database, so
// store, service, processor and API tests run without any external service.
// OpenIntegration connects to the database named by DATABASE_URL (PostgreSQL
// or MySQL, chosen by TEST_DB_DRIVER) and skips the test when it is unset.
//
// Basic usage:
//
//	func TestMyFeature(t *testing.T) {
//	    db, dialect := testdb.OpenSQLite(t)
//	    tasks := sqlstore.NewTaskStore(db, dialect, nil)
//	    ...
//	}
//
// Integration tests can isolate themselves in a transaction with WithTx,
// which always rolls back.
package testdb

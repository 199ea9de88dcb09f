package testdb

import "os"

// IsIntegrationTestEnvironment returns true if the DATABASE_URL environment
// variable is set, indicating that integration tests can be run.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// ShouldSkipDatabaseTest returns true if integration database tests should be skipped.
func ShouldSkipDatabaseTest() bool {
	return !IsIntegrationTestEnvironment()
}

// GetTestDatabaseURL returns the database URL for integration tests.
// It checks DATABASE_URL and TASKHUB_TEST_DB_URL in that order.
func GetTestDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("TASKHUB_TEST_DB_URL")
}

// GetTestDatabaseDriver returns the driver for integration tests (pgx by default).
func GetTestDatabaseDriver() string {
	if d := os.Getenv("TEST_DB_DRIVER"); d != "" {
		return d
	}
	return "pgx"
}

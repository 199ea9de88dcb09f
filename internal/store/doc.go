// Package store defines interfaces for task persistence.
// These interfaces abstract the underlying data storage mechanism from
// the lifecycle engine, so the business rules stay independent of the
// database in use (see internal/platform/sqlstore for implementations).
package store

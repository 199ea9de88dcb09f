package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/phrazzld/taskhub-api/internal/store"
)

// PostgreSQL error codes
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNotNullViolation     = "23502"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// MySQL error numbers
const (
	myDuplicateEntry     = 1062
	myBadNull            = 1048
	myRowIsReferenced    = 1451
	myNoReferencedRow    = 1452
	myCheckViolated      = 3819
	myLockWaitTimeout    = 1205
	myDeadlock           = 1213
	myLockNowaitConflict = 3572
)

type errorClass int

const (
	classOther errorClass = iota
	classDuplicate
	classConstraint
	classTransient
)

// MapError maps a database error to the matching store sentinel while
// keeping the original error in the chain.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	switch classify(err) {
	case classDuplicate:
		return fmt.Errorf("%w: %w", store.ErrDuplicate, err)
	case classConstraint:
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	case classTransient:
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	}

	// Return the original error for errors that don't have specific mappings
	return err
}

// IsTransientError reports whether err is a serialization failure, deadlock
// or lock timeout that may succeed if the transaction is retried.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrTransient) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return classify(err) == classTransient
}

// IsUniqueViolation reports whether err is a unique constraint violation on any dialect.
func IsUniqueViolation(err error) bool {
	return classify(err) == classDuplicate
}

func classify(err error) errorClass {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return classDuplicate
		case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation:
			return classConstraint
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return classTransient
		}
		return classOther
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDuplicateEntry:
			return classDuplicate
		case myBadNull, myRowIsReferenced, myNoReferencedRow, myCheckViolated:
			return classConstraint
		case myLockWaitTimeout, myDeadlock, myLockNowaitConflict:
			return classTransient
		}
		return classOther
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return classDuplicate
		}
		switch code & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return classConstraint
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return classTransient
		}
	}

	return classOther
}

// CheckRowsAffected examines the number of rows affected by a database operation.
// If no rows were affected, it returns notFound.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if notFound == nil {
			return store.ErrNotFound
		}
		return notFound
	}

	return nil
}

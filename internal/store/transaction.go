package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskhub-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// The transaction is committed if the function returns nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// TxOption configures RunInTransaction.
type TxOption func(*txConfig)

type txConfig struct {
	attempts  int
	backoff   time.Duration
	retryable func(error) bool
	txOpts    *sql.TxOptions
}

// WithRetry re-runs the whole transaction up to attempts times while
// retryable reports the failure as transient. fn must be safe to re-run.
func WithRetry(attempts int, retryable func(error) bool) TxOption {
	return func(c *txConfig) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.retryable = retryable
	}
}

// WithBackoff sets the base delay between retries. Attempt n waits n*d.
func WithBackoff(d time.Duration) TxOption {
	return func(c *txConfig) {
		c.backoff = d
	}
}

// WithTxOptions passes isolation level and read-only settings to BeginTx.
func WithTxOptions(opts *sql.TxOptions) TxOption {
	return func(c *txConfig) {
		c.txOpts = opts
	}
}

// RunInTransaction executes the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed. A panic inside fn rolls back and re-panics.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn, opts ...TxOption) error {
	cfg := txConfig{attempts: 1, backoff: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := logger.FromContext(ctx)

	var err error
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		err = runOnce(ctx, db, fn, cfg.txOpts)
		if err == nil {
			return nil
		}
		if cfg.retryable == nil || !cfg.retryable(err) || attempt == cfg.attempts {
			return err
		}

		log.Warn("retrying transaction after transient error",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.attempts),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", err, ctx.Err())
		case <-time.After(time.Duration(attempt) * cfg.backoff):
		}
	}
	return err
}

func runOnce(ctx context.Context, db *sql.DB, fn TxFn, txOpts *sql.TxOptions) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, txOpts)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if txErr := tx.Rollback(); txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}

	log.Debug("transaction committed successfully")
	return nil
}

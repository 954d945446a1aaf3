package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrUnavailable marks a durable-store I/O failure. Callers treat it as
// retryable at their own discretion; writes are never retried here.
var ErrUnavailable = errors.New("store unavailable")

// Open opens a Postgres connection using the given DSN. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Unavailable wraps a driver error so callers can branch with errors.Is(err, ErrUnavailable).
// Returns nil for nil and passes sql.ErrNoRows through untouched.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// readAttempts bounds retries for idempotent reads. Writes must not use WithReadRetry.
const readAttempts = 3

// WithReadRetry runs fn up to readAttempts times, backing off briefly between
// attempts. Only for idempotent reads; the last error is returned wrapped as
// ErrUnavailable.
func WithReadRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < readAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		err = fn()
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	return Unavailable(err)
}

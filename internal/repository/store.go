package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/tryout-api/pkg/errors"
)

// StoreOptions bounds individual store operations and governs retries of
// transient failures.
type StoreOptions struct {
	QueryTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (o StoreOptions) normalized() StoreOptions {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 5 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 50 * time.Millisecond
	}
	return o
}

// isTransient reports whether the failure is worth retrying: serialization
// conflicts, deadlocks, lock timeouts, bad connections and deadline expiry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

// isUniqueViolation reports whether the error is a Postgres unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// withRetry runs fn under a per-try timeout, retrying transient failures a
// bounded number of times with linear backoff. Exhaustion surfaces as
// ErrUnavailable so callers can distinguish it from hard failures.
func withRetry(ctx context.Context, opts StoreOptions, fn func(context.Context) error) error {
	opts = opts.normalized()

	var err error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * opts.RetryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return appErrors.Wrap(ctx.Err(), appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, appErrors.ErrUnavailable.Message)
			case <-timer.C:
			}
		}

		tryCtx, cancel := context.WithTimeout(ctx, opts.QueryTimeout)
		err = fn(tryCtx)
		cancel()

		if err == nil || !isTransient(err) {
			return err
		}
	}

	return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, appErrors.ErrUnavailable.Message)
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLSTATE codes worth another attempt. Class 08 (connection exceptions) is
// matched by prefix.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
	pgErrAdminShutdown        = "57P01"
	pgErrCannotConnectNow     = "57P03"
	pgClassConnection         = "08"
)

// Retrier retries transient mirror writes with exponential backoff. Mirror
// writes run on the dispatcher goroutine, so the bounds here cap how far the
// mirror may fall behind one event.
type Retrier struct {
	maxRetries uint64
	initial    time.Duration
	max        time.Duration
	maxElapsed time.Duration
	logger     zerolog.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithMaxRetries caps the number of retries after the first attempt.
func WithMaxRetries(n uint64) RetrierOption {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithIntervals sets the first and the largest wait between attempts.
func WithIntervals(initial, max time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.initial = initial
		r.max = max
	}
}

// WithMaxElapsed bounds the total time spent retrying one operation.
func WithMaxElapsed(d time.Duration) RetrierOption {
	return func(r *Retrier) { r.maxElapsed = d }
}

// NewRetrier creates a Retrier. Defaults: 5 retries, 50ms doubling to 1s,
// at most 10s in total.
func NewRetrier(logger zerolog.Logger, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		maxRetries: 5,
		initial:    50 * time.Millisecond,
		max:        time.Second,
		maxElapsed: 10 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retry runs operation until it succeeds, fails permanently or the retry
// budget is spent. The last error is returned.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.initial
	exp.MaxInterval = r.max
	exp.MaxElapsedTime = r.maxElapsed

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, r.maxRetries), ctx)

	attempt := func() error {
		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn().Err(err).Dur("wait", wait).Msg("transient database error, retrying")
	}

	return backoff.RetryNotify(attempt, policy, notify)
}

// isRetryableError reports whether err is transient: lock conflicts, server
// restarts, broken connections, or network failures before anything was sent.
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable,
			pgErrAdminShutdown, pgErrCannotConnectNow:
			return true
		}
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == pgClassConnection
	}
	return pgconn.SafeToRetry(err)
}

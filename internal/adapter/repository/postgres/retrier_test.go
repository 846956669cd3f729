package postgres

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func fastRetrier(maxRetries uint64) *Retrier {
	return NewRetrier(zerolog.Nop(),
		WithMaxRetries(maxRetries),
		WithIntervals(time.Millisecond, 2*time.Millisecond),
		WithMaxElapsed(100*time.Millisecond),
	)
}

func TestRetrierAttempts(t *testing.T) {
	testCases := []struct {
		name         string
		maxRetries   uint64
		failures     int
		err          error
		wantErr      bool
		wantAttempts int
	}{
		{
			name:         "deadlock then success",
			maxRetries:   2,
			failures:     1,
			err:          &pgconn.PgError{Code: pgErrDeadlock},
			wantAttempts: 2,
		},
		{
			name:         "connection failure then success",
			maxRetries:   2,
			failures:     2,
			err:          &pgconn.PgError{Code: "08006"},
			wantAttempts: 3,
		},
		{
			name:         "retry budget spent",
			maxRetries:   2,
			failures:     10,
			err:          &pgconn.PgError{Code: pgErrSerializationFailure},
			wantErr:      true,
			wantAttempts: 3,
		},
		{
			name:         "permanent error",
			maxRetries:   3,
			failures:     10,
			err:          &pgconn.PgError{Code: "23505"},
			wantErr:      true,
			wantAttempts: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			attempts := 0
			err := fastRetrier(tc.maxRetries).Retry(context.Background(), func() error {
				attempts++
				if attempts <= tc.failures {
					return tc.err
				}
				return nil
			})

			if tc.wantErr {
				var pgErr *pgconn.PgError
				if !errors.As(err, &pgErr) {
					t.Fatalf("expected pg error, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if attempts != tc.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tc.wantAttempts, attempts)
			}
		})
	}
}

func TestRetrierLogsEachRetry(t *testing.T) {
	var buf bytes.Buffer
	r := NewRetrier(zerolog.New(&buf), WithMaxRetries(1), WithIntervals(time.Millisecond, time.Millisecond))

	_ = r.Retry(context.Background(), func() error {
		return &pgconn.PgError{Code: pgErrLockNotAvailable}
	})

	if got := strings.Count(buf.String(), "transient database error"); got != 1 {
		t.Fatalf("expected one retry log line, got %d in %q", got, buf.String())
	}
}

func TestRetrierStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := fastRetrier(5).Retry(ctx, func() error {
		attempts++
		return &pgconn.PgError{Code: pgErrDeadlock}
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts > 1 {
		t.Fatalf("expected no retries after cancel, got %d attempts", attempts)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, true},
		{"lock not available", &pgconn.PgError{Code: pgErrLockNotAvailable}, true},
		{"admin shutdown", &pgconn.PgError{Code: pgErrAdminShutdown}, true},
		{"connection class", &pgconn.PgError{Code: "08003"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"generic", errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Fatalf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

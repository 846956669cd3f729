package domain

import (
	"errors"
	"math"
	"testing"
)

func TestAccount_CanApply(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		limit       int64
		delta       int64
		wantBalance int64
		wantErr     error
	}{
		{
			name:        "credit from zero",
			balance:     0,
			limit:       1000,
			delta:       500,
			wantBalance: 500,
		},
		{
			name:        "debit down to exactly the limit",
			balance:     0,
			limit:       100000,
			delta:       -100000,
			wantBalance: -100000,
		},
		{
			name:        "debit one cent past the limit",
			balance:     -100000,
			limit:       100000,
			delta:       -1,
			wantBalance: -100000,
			wantErr:     ErrRejected,
		},
		{
			name:        "zero limit rejects any overdraft",
			balance:     10,
			limit:       0,
			delta:       -11,
			wantBalance: 10,
			wantErr:     ErrRejected,
		},
		{
			name:        "huge debit cannot wrap past the limit",
			balance:     -2,
			limit:       100000,
			delta:       -math.MaxInt64,
			wantBalance: -2,
			wantErr:     ErrRejected,
		},
		{
			name:        "debit that would underflow int64",
			balance:     -1,
			limit:       math.MaxInt64,
			delta:       math.MinInt64,
			wantBalance: -1,
			wantErr:     ErrRejected,
		},
		{
			name:        "credit that would overflow",
			balance:     10,
			limit:       0,
			delta:       math.MaxInt64,
			wantBalance: 10,
			wantErr:     ErrBalanceOverflow,
		},
		{
			name:        "credit up to max int",
			balance:     -1,
			limit:       0,
			delta:       math.MaxInt64,
			wantBalance: math.MaxInt64 - 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{Balance: tt.balance, Limit: tt.limit}

			got, err := acc.CanApply(tt.delta)

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantBalance {
				t.Errorf("expected balance %d, got %d", tt.wantBalance, got)
			}
		})
	}
}

func TestAccount_Available(t *testing.T) {
	acc := &Account{Balance: -300, Limit: 1000}
	if got := acc.Available(); got != 700 {
		t.Errorf("expected 700 available, got %d", got)
	}
}

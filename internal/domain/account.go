package domain

import "math"

// Account is one ledger holder. Limit is the maximum overdraft magnitude and
// never changes after provisioning.
type Account struct {
	ID      int
	Balance int64
	Limit   int64
	Locked  bool
}

// CanApply returns the balance that results from adding delta. A debit that
// would fall below -Limit, or would not fit in an int64 at all, fails with
// ErrRejected. A credit that would overflow fails with ErrBalanceOverflow.
// On failure the current balance is returned.
func (a *Account) CanApply(delta int64) (int64, error) {
	switch {
	case delta < 0 && a.Balance < math.MinInt64-delta:
		return a.Balance, ErrRejected
	case delta > 0 && a.Balance > math.MaxInt64-delta:
		return a.Balance, ErrBalanceOverflow
	}

	newBalance := a.Balance + delta
	if newBalance < -a.Limit {
		return a.Balance, ErrRejected
	}
	return newBalance, nil
}

// Available returns how much can still be debited before the limit is hit.
func (a *Account) Available() int64 {
	return a.Balance + a.Limit
}

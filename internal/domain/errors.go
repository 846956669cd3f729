package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrRejected        = errors.New("transaction would exceed overdraft limit")
	ErrBalanceOverflow = errors.New("balance would overflow")

	// Transaction errors
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidKind        = errors.New("kind must be credit (c) or debit (d)")
	ErrInvalidDescription = errors.New("description must be 1 to 10 bytes")

	// Storage errors
	ErrCapacityExceeded = errors.New("transaction log capacity exceeded")
	ErrOutOfRange       = errors.New("slot index out of range")
	ErrNotProvisioned   = errors.New("ledger storage is not provisioned")
	ErrLayoutMismatch   = errors.New("ledger storage was provisioned with a different layout")
)

package domain

import "time"

// Kind is the direction of a transaction.
type Kind byte

const (
	KindUnknown Kind = 0
	KindCredit  Kind = 'c'
	KindDebit   Kind = 'd'
)

// ParseKind converts the wire form ("c" or "d") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "c":
		return KindCredit, nil
	case "d":
		return KindDebit, nil
	default:
		return KindUnknown, ErrInvalidKind
	}
}

// KindFromByte maps a stored byte back to a Kind. Bytes other than 'c' and 'd'
// are reported as KindUnknown.
func KindFromByte(b byte) Kind {
	switch Kind(b) {
	case KindCredit, KindDebit:
		return Kind(b)
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindCredit:
		return "c"
	case KindDebit:
		return "d"
	default:
		return "?"
	}
}

// SignedAmount applies the direction of kind to a non-negative amount.
func SignedAmount(kind Kind, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	switch kind {
	case KindCredit:
		return amount, nil
	case KindDebit:
		return -amount, nil
	default:
		return 0, ErrInvalidKind
	}
}

// Transaction is an immutable ledger entry. ID is the sequence number within
// the owning account's log.
type Transaction struct {
	ID          uint32
	AccountID   int
	Amount      int64
	Kind        Kind
	Description string
	CreatedAt   time.Time
}

// Statement is a point-in-time view of an account and its latest entries.
type Statement struct {
	AccountID   int
	Balance     int64
	Limit       int64
	StatementAt time.Time
	Recent      []Transaction
}

package domain

import "time"

// Event types
const (
	EventTypeTransactionPosted = "transaction.posted"
)

// Aggregate types
const (
	AggregateTypeAccount = "account"
)

// TransactionPostedEvent is emitted after a transaction has been applied to
// the balance and appended to the account log.
type TransactionPostedEvent struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	AccountID   int       `json:"account_id"`
	SequenceID  uint32    `json:"sequence_id"`
	Amount      int64     `json:"amount"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Balance     int64     `json:"balance"`
	Limit       int64     `json:"limit"`
	CreatedAt   time.Time `json:"created_at"`
}

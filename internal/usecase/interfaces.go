package usecase

import (
	"context"
	"time"

	"github.com/iho/slotledger/internal/domain"
)

// LedgerStore defines access to the ledger engine.
type LedgerStore interface {
	// Post applies the signed amount under the account lock and appends the
	// transaction to the account log.
	Post(ctx context.Context, accountID int, kind domain.Kind, amount int64, description string, at time.Time) (*domain.Account, uint32, error)
	// GetAccount returns a lock-free snapshot of an account.
	GetAccount(ctx context.Context, accountID int) (*domain.Account, error)
	// RecentTransactions returns up to limit entries, newest first.
	RecentTransactions(ctx context.Context, accountID int, limit int) ([]domain.Transaction, error)
}

// EventSink receives events after a transaction is posted. Dispatch must
// not block the request path.
type EventSink interface {
	Dispatch(event *domain.TransactionPostedEvent)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically claims key. A nil response stores the pending
	// placeholder. Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update replaces the value of a claimed key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so the request can be retried with the same key.
	Release(ctx context.Context, key string) error
}

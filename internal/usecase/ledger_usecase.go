package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/slotledger/internal/domain"
)

// StatementSize is the number of recent transactions in a statement.
const StatementSize = 10

// LedgerUseCase handles transaction posting and statements.
type LedgerUseCase struct {
	store  LedgerStore
	events EventSink
	idGen  IDGenerator
	now    func() time.Time
	logger zerolog.Logger
}

// LedgerOption configures a LedgerUseCase.
type LedgerOption func(*LedgerUseCase)

// WithClock overrides the clock used for transaction timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(uc *LedgerUseCase) { uc.now = now }
}

// WithLedgerLogger sets the use case logger.
func WithLedgerLogger(logger zerolog.Logger) LedgerOption {
	return func(uc *LedgerUseCase) { uc.logger = logger }
}

// NewLedgerUseCase creates a new LedgerUseCase. events may be nil.
func NewLedgerUseCase(store LedgerStore, events EventSink, idGen IDGenerator, opts ...LedgerOption) *LedgerUseCase {
	uc := &LedgerUseCase{
		store:  store,
		events: events,
		idGen:  idGen,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CreateTransactionInput represents input for posting a transaction.
type CreateTransactionInput struct {
	AccountID   int
	Amount      int64
	Kind        string
	Description string
}

// CreateTransactionOutput is the account state after a posted transaction.
type CreateTransactionOutput struct {
	SequenceID uint32
	Balance    int64
	Limit      int64
}

// CreateTransaction validates and posts a transaction.
func (uc *LedgerUseCase) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*CreateTransactionOutput, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	kind, err := domain.ParseKind(input.Kind)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateDescription(input.Description); err != nil {
		return nil, err
	}

	at := uc.now().UTC()

	account, seq, err := uc.store.Post(ctx, input.AccountID, kind, input.Amount, input.Description, at)
	if err != nil {
		if errors.Is(err, domain.ErrRejected) {
			uc.logger.Debug().
				Int("account_id", input.AccountID).
				Int64("amount", input.Amount).
				Str("kind", kind.String()).
				Msg("transaction rejected by limit")
		}
		return nil, err
	}

	if uc.events != nil {
		uc.events.Dispatch(&domain.TransactionPostedEvent{
			ID:          uc.idGen.Generate(),
			EventType:   domain.EventTypeTransactionPosted,
			AccountID:   account.ID,
			SequenceID:  seq,
			Amount:      input.Amount,
			Kind:        kind.String(),
			Description: input.Description,
			Balance:     account.Balance,
			Limit:       account.Limit,
			CreatedAt:   at,
		})
	}

	return &CreateTransactionOutput{
		SequenceID: seq,
		Balance:    account.Balance,
		Limit:      account.Limit,
	}, nil
}

// GetStatement returns the balance and the latest transactions of an
// account. Both reads skip the account lock and may be slightly stale.
func (uc *LedgerUseCase) GetStatement(ctx context.Context, accountID int) (*domain.Statement, error) {
	account, err := uc.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	recent, err := uc.store.RecentTransactions(ctx, accountID, StatementSize)
	if err != nil {
		return nil, err
	}

	return &domain.Statement{
		AccountID:   account.ID,
		Balance:     account.Balance,
		Limit:       account.Limit,
		StatementAt: uc.now().UTC(),
		Recent:      recent,
	}, nil
}

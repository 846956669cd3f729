package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/infrastructure/postgres/generated"
)

// mirrorPool is the subset of *pgxpool.Pool used by MirrorRepository.
type mirrorPool interface {
	pgxPool
	generated.DBTX
}

// MirrorRepository copies posted transactions and client balances into
// PostgreSQL. Writes are idempotent on (account_id, seq_id) and client rows
// only move forward in sequence order.
type MirrorRepository struct {
	db      mirrorPool
	txm     *TxManager
	retrier *Retrier
	logger  zerolog.Logger
}

// NewMirrorRepository creates a new MirrorRepository.
func NewMirrorRepository(pool mirrorPool, retrier *Retrier, logger zerolog.Logger) *MirrorRepository {
	return &MirrorRepository{
		db:      pool,
		txm:     NewTxManager(pool),
		retrier: retrier,
		logger:  logger,
	}
}

// Name implements eventpublisher.Publisher.
func (r *MirrorRepository) Name() string { return "postgres" }

// SeedClients makes sure every account has a client row carrying its
// current limit.
func (r *MirrorRepository) SeedClients(ctx context.Context, accounts []*domain.Account) error {
	now := timestamptz(time.Now())

	return r.retrier.Retry(ctx, func() error {
		return r.txm.WithinTx(ctx, func(q *generated.Queries) error {
			for _, a := range accounts {
				err := q.SeedClient(ctx, generated.SeedClientParams{
					ID:          int32(a.ID),
					Balance:     a.Balance,
					CreditLimit: a.Limit,
					UpdatedAt:   now,
				})
				if err != nil {
					return fmt.Errorf("failed to seed client %d: %w", a.ID, err)
				}
			}
			return nil
		})
	})
}

// Publish writes the transaction and the resulting client balance in one
// database transaction.
func (r *MirrorRepository) Publish(ctx context.Context, event *domain.TransactionPostedEvent) error {
	at := timestamptz(event.CreatedAt)

	return r.retrier.Retry(ctx, func() error {
		return r.txm.WithinTx(ctx, func(q *generated.Queries) error {
			if err := q.UpsertClient(ctx, generated.UpsertClientParams{
				ID:          int32(event.AccountID),
				Balance:     event.Balance,
				CreditLimit: event.Limit,
				LastSeqID:   int64(event.SequenceID),
				UpdatedAt:   at,
			}); err != nil {
				return fmt.Errorf("failed to upsert client: %w", err)
			}

			inserted, err := q.InsertTransaction(ctx, generated.InsertTransactionParams{
				AccountID:   int32(event.AccountID),
				SeqID:       int64(event.SequenceID),
				EventID:     event.ID,
				Amount:      event.Amount,
				Kind:        event.Kind,
				Description: event.Description,
				CreatedAt:   at,
			})
			if err != nil {
				return fmt.Errorf("failed to insert transaction: %w", err)
			}
			if inserted == 0 {
				r.logger.Debug().
					Int("account_id", event.AccountID).
					Uint32("sequence_id", event.SequenceID).
					Msg("transaction already mirrored")
			}
			return nil
		})
	})
}

// Statement reads a statement back from the mirror.
func (r *MirrorRepository) Statement(ctx context.Context, accountID, limit int) (*domain.Statement, error) {
	q := generated.New(r.db)

	client, err := q.GetClient(ctx, int32(accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	rows, err := q.ListRecentTransactions(ctx, generated.ListRecentTransactionsParams{
		AccountID: int32(accountID),
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	recent := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		recent = append(recent, transactionFromRow(row))
	}

	return &domain.Statement{
		AccountID:   int(client.ID),
		Balance:     client.Balance,
		Limit:       client.CreditLimit,
		StatementAt: time.Now().UTC(),
		Recent:      recent,
	}, nil
}

func transactionFromRow(row generated.Transaction) domain.Transaction {
	kind, _ := domain.ParseKind(row.Kind)
	return domain.Transaction{
		ID:          uint32(row.SeqID),
		AccountID:   int(row.AccountID),
		Amount:      row.Amount,
		Kind:        kind,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.Time.UTC(),
	}
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

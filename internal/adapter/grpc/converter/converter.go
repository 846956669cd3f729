package converter

import (
	"github.com/iho/slotledger/internal/adapter/grpc/ledgerv1"
	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/usecase"
)

// PostRequestToInput converts a gRPC post request to use case input.
func PostRequestToInput(req *ledgerv1.PostTransactionRequest) usecase.CreateTransactionInput {
	return usecase.CreateTransactionInput{
		AccountID:   int(req.AccountID),
		Amount:      req.Amount,
		Kind:        req.Kind,
		Description: req.Description,
	}
}

// PostOutputToResponse converts the use case output to a gRPC response.
func PostOutputToResponse(out *usecase.CreateTransactionOutput) *ledgerv1.PostTransactionResponse {
	if out == nil {
		return nil
	}
	return &ledgerv1.PostTransactionResponse{
		SequenceID: out.SequenceID,
		Balance:    out.Balance,
		Limit:      out.Limit,
	}
}

// TransactionToMessage converts a domain transaction.
func TransactionToMessage(t domain.Transaction) *ledgerv1.Transaction {
	return &ledgerv1.Transaction{
		SequenceID:  t.ID,
		Amount:      t.Amount,
		Kind:        t.Kind.String(),
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Unix(),
	}
}

// StatementToResponse converts a domain statement. Transactions is never nil.
func StatementToResponse(s *domain.Statement) *ledgerv1.GetStatementResponse {
	if s == nil {
		return nil
	}

	txs := make([]*ledgerv1.Transaction, len(s.Recent))
	for i, t := range s.Recent {
		txs[i] = TransactionToMessage(t)
	}

	return &ledgerv1.GetStatementResponse{
		AccountID:    int32(s.AccountID),
		Balance:      s.Balance,
		Limit:        s.Limit,
		StatementAt:  s.StatementAt.Unix(),
		Transactions: txs,
	}
}

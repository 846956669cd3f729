package converter

import (
	"testing"
	"time"

	"github.com/iho/slotledger/internal/adapter/grpc/ledgerv1"
	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/usecase"
)

func TestPostRequestToInput(t *testing.T) {
	got := PostRequestToInput(&ledgerv1.PostTransactionRequest{AccountID: 2, Amount: 15, Kind: "d", Description: "coffee"})

	if got.AccountID != 2 || got.Amount != 15 || got.Kind != "d" || got.Description != "coffee" {
		t.Fatalf("unexpected input: %+v", got)
	}
}

func TestPostOutputToResponse(t *testing.T) {
	if PostOutputToResponse(nil) != nil {
		t.Fatal("expected nil for nil output")
	}

	got := PostOutputToResponse(&usecase.CreateTransactionOutput{SequenceID: 7, Balance: -30, Limit: 1000})
	if got.SequenceID != 7 || got.Balance != -30 || got.Limit != 1000 {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestStatementToResponse(t *testing.T) {
	if StatementToResponse(nil) != nil {
		t.Fatal("expected nil for nil statement")
	}

	at := time.Unix(1_700_000_000, 0).UTC()
	got := StatementToResponse(&domain.Statement{
		AccountID:   1,
		Balance:     20,
		Limit:       1000,
		StatementAt: at,
		Recent: []domain.Transaction{
			{ID: 2, Amount: 30, Kind: domain.KindDebit, Description: "out", CreatedAt: at},
			{ID: 1, Amount: 50, Kind: domain.KindCredit, Description: "in", CreatedAt: at.Add(-time.Second)},
		},
	})

	if got.AccountID != 1 || got.Balance != 20 || got.Limit != 1000 || got.StatementAt != 1_700_000_000 {
		t.Fatalf("unexpected statement: %+v", got)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got.Transactions))
	}
	if first := got.Transactions[0]; first.SequenceID != 2 || first.Kind != "d" || first.Description != "out" {
		t.Fatalf("unexpected first transaction: %+v", first)
	}
	if got.Transactions[1].CreatedAt != 1_699_999_999 {
		t.Fatalf("unexpected created_at: %d", got.Transactions[1].CreatedAt)
	}

	empty := StatementToResponse(&domain.Statement{AccountID: 3})
	if empty.Transactions == nil {
		t.Fatal("expected non-nil transaction list")
	}
}

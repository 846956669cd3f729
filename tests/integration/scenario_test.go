package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/iho/slotledger/tests/testutil"
)

func TestOverdraftLimitOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	srv := testutil.NewTestServer(t, testutil.NewEngine(t, 64))

	status, resp := srv.Post(t, 1, 100000, "d", "all in")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Saldo != -100000 || resp.Limite != 100000 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if status, _ := srv.Post(t, 1, 1, "d", "one more"); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 past the limit, got %d", status)
	}

	status, statement := srv.Statement(t, 1)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if statement.Saldo.Total != -100000 {
		t.Fatalf("balance changed by rejected debit: %d", statement.Saldo.Total)
	}
	if len(statement.UltimasTransacoes) != 1 {
		t.Fatalf("rejected debit must not be logged, got %d entries", len(statement.UltimasTransacoes))
	}

	// A credit brings the account back under the limit.
	status, resp = srv.Post(t, 1, 1, "c", "refund")
	if status != http.StatusOK || resp.Saldo != -99999 {
		t.Fatalf("unexpected credit result: %d %+v", status, resp)
	}
}

func TestStatementKeepsLastTenNewestFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	srv := testutil.NewTestServer(t, testutil.NewEngine(t, 64))

	for i := 1; i <= 15; i++ {
		if status, _ := srv.Post(t, 2, i, "c", fmt.Sprintf("t%d", i)); status != http.StatusOK {
			t.Fatalf("post %d failed with %d", i, status)
		}
	}

	_, statement := srv.Statement(t, 2)
	if statement.Saldo.Total != 120 {
		t.Fatalf("expected balance 120, got %d", statement.Saldo.Total)
	}
	if len(statement.UltimasTransacoes) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(statement.UltimasTransacoes))
	}
	for i, entry := range statement.UltimasTransacoes {
		want := 15 - i
		if entry.Descricao != fmt.Sprintf("t%d", want) || entry.Valor != int64(want) || entry.Tipo != "c" {
			t.Fatalf("entry %d: expected t%d, got %+v", i, want, entry)
		}
	}

	recent, err := srv.Engine.RecentTransactions(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	for i, tx := range recent {
		if tx.ID != uint32(15-i) {
			t.Fatalf("entry %d: expected id %d, got %d", i, 15-i, tx.ID)
		}
	}
}

func TestConcurrentCreditAndDebitSettle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	for round := 0; round < 20; round++ {
		srv := testutil.NewTestServer(t, testutil.NewEngine(t, 8, 1000))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if status, _ := srv.Post(t, 1, 50, "c", "in"); status != http.StatusOK {
				t.Errorf("credit failed with %d", status)
			}
		}()
		go func() {
			defer wg.Done()
			if status, _ := srv.Post(t, 1, 30, "d", "out"); status != http.StatusOK {
				t.Errorf("debit failed with %d", status)
			}
		}()
		wg.Wait()

		_, statement := srv.Statement(t, 1)
		if statement.Saldo.Total != 20 {
			t.Fatalf("round %d: expected balance 20, got %d", round, statement.Saldo.Total)
		}
		if len(statement.UltimasTransacoes) != 2 {
			t.Fatalf("round %d: expected 2 entries, got %d", round, len(statement.UltimasTransacoes))
		}
		srv.Close()
	}
}

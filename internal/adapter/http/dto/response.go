package dto

import (
	"strconv"
	"time"

	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/usecase"
)

// TransactionResponse is returned after a transaction is posted.
type TransactionResponse struct {
	Limite int64 `json:"limite"`
	Saldo  int64 `json:"saldo"`
}

// TransactionFromOutput converts use case output to response.
func TransactionFromOutput(out *usecase.CreateTransactionOutput) *TransactionResponse {
	return &TransactionResponse{
		Limite: out.Limit,
		Saldo:  out.Balance,
	}
}

// BalanceResponse is the balance block of a statement. DataExtrato is the
// statement time in unix seconds.
type BalanceResponse struct {
	Total       int64  `json:"total"`
	DataExtrato string `json:"data_extrato"`
	Limite      int64  `json:"limite"`
}

// StatementEntryResponse is one transaction of a statement.
type StatementEntryResponse struct {
	Valor       int64  `json:"valor"`
	Tipo        string `json:"tipo"`
	Descricao   string `json:"descricao"`
	RealizadaEm int64  `json:"realizada_em"`
}

// StatementResponse is returned by GET /clientes/{id}/extrato.
type StatementResponse struct {
	Saldo             BalanceResponse          `json:"saldo"`
	UltimasTransacoes []StatementEntryResponse `json:"ultimas_transacoes"`
}

// StatementFromDomain converts a domain statement to response. The entry
// list is never null.
func StatementFromDomain(s *domain.Statement) *StatementResponse {
	entries := make([]StatementEntryResponse, len(s.Recent))
	for i, t := range s.Recent {
		entries[i] = StatementEntryResponse{
			Valor:       t.Amount,
			Tipo:        t.Kind.String(),
			Descricao:   t.Description,
			RealizadaEm: t.CreatedAt.Unix(),
		}
	}

	return &StatementResponse{
		Saldo: BalanceResponse{
			Total:       s.Balance,
			DataExtrato: strconv.FormatInt(s.StatementAt.Unix(), 10),
			Limite:      s.Limit,
		},
		UltimasTransacoes: entries,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DiscrepancyResponse describes an account whose log does not replay to its
// balance. Amounts are in major units.
type DiscrepancyResponse struct {
	AccountID  int    `json:"account_id"`
	Recorded   string `json:"recorded"`
	Calculated string `json:"calculated"`
	Difference string `json:"difference"`
}

// ConsistencyResponse is returned by GET /ledger/consistency.
type ConsistencyResponse struct {
	Status        string                `json:"status"`
	Consistent    bool                  `json:"consistent"`
	Accounts      int                   `json:"accounts"`
	CheckedAt     time.Time             `json:"checked_at"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies,omitempty"`
}

// ConsistencyFromReport converts a reconciliation report to response.
func ConsistencyFromReport(r *usecase.ReconciliationReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		Status:     "consistent",
		Consistent: r.Consistent(),
		Accounts:   r.TotalAccounts,
		CheckedAt:  r.CheckedAt,
	}
	if !resp.Consistent {
		resp.Status = "inconsistent"
	}
	for _, d := range r.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, DiscrepancyResponse{
			AccountID:  d.AccountID,
			Recorded:   d.RecordedBalance.StringFixed(2),
			Calculated: d.CalculatedBalance.StringFixed(2),
			Difference: d.Difference.StringFixed(2),
		})
	}
	return resp
}

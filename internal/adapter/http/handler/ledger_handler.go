package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iho/slotledger/internal/adapter/http/dto"
	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/usecase"
)

// LedgerService is the use case surface used by LedgerHandler.
type LedgerService interface {
	CreateTransaction(ctx context.Context, input usecase.CreateTransactionInput) (*usecase.CreateTransactionOutput, error)
	GetStatement(ctx context.Context, accountID int) (*domain.Statement, error)
}

// LedgerHandler serves the client transaction and statement endpoints.
type LedgerHandler struct {
	service LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(service LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// CreateTransaction handles POST /clientes/{id}/transacoes.
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req dto.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body", err.Error())
		return
	}

	out, err := h.service.CreateTransaction(r.Context(), req.ToUseCaseInput(accountID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromOutput(out))
}

// GetStatement handles GET /clientes/{id}/extrato.
func (h *LedgerHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDParam(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	statement, err := h.service.GetStatement(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatementFromDomain(statement))
}

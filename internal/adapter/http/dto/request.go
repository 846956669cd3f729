package dto

import (
	"github.com/iho/slotledger/internal/usecase"
)

// CreateTransactionRequest is the body of POST /clientes/{id}/transacoes.
// Valor is an integer amount in cents; fractional values fail to decode.
type CreateTransactionRequest struct {
	Valor     int64  `json:"valor"`
	Tipo      string `json:"tipo"`
	Descricao string `json:"descricao"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransactionRequest) ToUseCaseInput(accountID int) usecase.CreateTransactionInput {
	return usecase.CreateTransactionInput{
		AccountID:   accountID,
		Amount:      r.Valor,
		Kind:        r.Tipo,
		Description: r.Descricao,
	}
}

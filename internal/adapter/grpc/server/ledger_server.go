package server

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iho/slotledger/internal/adapter/grpc/converter"
	grpcerrors "github.com/iho/slotledger/internal/adapter/grpc/errors"
	"github.com/iho/slotledger/internal/adapter/grpc/ledgerv1"
	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/usecase"
)

// LedgerUseCase is the use case surface used by LedgerServer.
type LedgerUseCase interface {
	CreateTransaction(ctx context.Context, input usecase.CreateTransactionInput) (*usecase.CreateTransactionOutput, error)
	GetStatement(ctx context.Context, accountID int) (*domain.Statement, error)
}

// LedgerServer implements the gRPC LedgerService
type LedgerServer struct {
	ledgerv1.UnimplementedLedgerServiceServer
	ledgerUC LedgerUseCase
}

// NewLedgerServer creates a new LedgerServer
func NewLedgerServer(ledgerUC LedgerUseCase) *LedgerServer {
	return &LedgerServer{ledgerUC: ledgerUC}
}

// PostTransaction posts a credit or debit
func (s *LedgerServer) PostTransaction(ctx context.Context, req *ledgerv1.PostTransactionRequest) (*ledgerv1.PostTransactionResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	out, err := s.ledgerUC.CreateTransaction(ctx, converter.PostRequestToInput(req))
	if err != nil {
		return nil, grpcerrors.MapDomainError(err)
	}

	return converter.PostOutputToResponse(out), nil
}

// GetStatement returns the balance and latest transactions of an account
func (s *LedgerServer) GetStatement(ctx context.Context, req *ledgerv1.GetStatementRequest) (*ledgerv1.GetStatementResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	statement, err := s.ledgerUC.GetStatement(ctx, int(req.AccountID))
	if err != nil {
		return nil, grpcerrors.MapDomainError(err)
	}

	return converter.StatementToResponse(statement), nil
}

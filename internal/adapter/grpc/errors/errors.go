package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iho/slotledger/internal/domain"
)

// MapDomainError converts domain errors to gRPC status errors. Unknown
// errors become Internal without exposing their text.
func MapDomainError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, "account not found")

	case errors.Is(err, domain.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, "invalid amount: must be positive and fit in 32 bits")
	case errors.Is(err, domain.ErrInvalidKind):
		return status.Error(codes.InvalidArgument, "invalid kind: must be c or d")
	case errors.Is(err, domain.ErrInvalidDescription):
		return status.Error(codes.InvalidArgument, "invalid description: must be 1 to 10 bytes")

	case errors.Is(err, domain.ErrRejected):
		return status.Error(codes.FailedPrecondition, "transaction would exceed overdraft limit")
	case errors.Is(err, domain.ErrBalanceOverflow):
		return status.Error(codes.OutOfRange, "balance would overflow")

	case errors.Is(err, domain.ErrCapacityExceeded):
		return status.Error(codes.ResourceExhausted, "transaction log is full")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "operation timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "operation was canceled")

	default:
		return status.Error(codes.Internal, "an internal error occurred")
	}
}

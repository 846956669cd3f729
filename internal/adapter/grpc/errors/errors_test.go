package errors_test

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpcerrors "github.com/iho/slotledger/internal/adapter/grpc/errors"
	"github.com/iho/slotledger/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		want    codes.Code
		wantMsg string
	}{
		{"nil error", nil, codes.OK, ""},
		{"account not found", domain.ErrAccountNotFound, codes.NotFound, "account not found"},
		{"wrapped not found", fmt.Errorf("account 9: %w", domain.ErrAccountNotFound), codes.NotFound, "account not found"},
		{"invalid amount", domain.ErrInvalidAmount, codes.InvalidArgument, "invalid amount: must be positive and fit in 32 bits"},
		{"invalid kind", domain.ErrInvalidKind, codes.InvalidArgument, "invalid kind: must be c or d"},
		{"invalid description", domain.ErrInvalidDescription, codes.InvalidArgument, "invalid description: must be 1 to 10 bytes"},
		{"rejected", domain.ErrRejected, codes.FailedPrecondition, "transaction would exceed overdraft limit"},
		{"overflow", domain.ErrBalanceOverflow, codes.OutOfRange, "balance would overflow"},
		{"capacity", domain.ErrCapacityExceeded, codes.ResourceExhausted, "transaction log is full"},
		{"deadline exceeded", context.DeadlineExceeded, codes.DeadlineExceeded, "operation timed out"},
		{"canceled", context.Canceled, codes.Canceled, "operation was canceled"},
		{"unknown error", stdErrors.New("boom"), codes.Internal, "an internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := grpcerrors.MapDomainError(tt.err)

			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}

			st, ok := status.FromError(got)
			if !ok {
				t.Fatalf("expected status error, got %T", got)
			}
			if st.Code() != tt.want {
				t.Fatalf("expected code %v, got %v", tt.want, st.Code())
			}
			if st.Message() != tt.wantMsg {
				t.Fatalf("expected message %q, got %q", tt.wantMsg, st.Message())
			}
		})
	}
}

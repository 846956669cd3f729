package middleware_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iho/slotledger/internal/adapter/grpc/ledgerv1"
	"github.com/iho/slotledger/internal/adapter/grpc/middleware"
	"github.com/iho/slotledger/internal/infrastructure/metrics"
)

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	interceptor := middleware.LoggingInterceptor(zerolog.New(&buf), m)
	info := &grpc.UnaryServerInfo{FullMethod: ledgerv1.PostTransactionMethod}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
			t.Fatal("expected a call logger in the context")
		}
		return nil, status.Error(codes.FailedPrecondition, "rejected")
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected handler error to pass through, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"code":"FailedPrecondition"`) || !strings.Contains(out, ledgerv1.PostTransactionMethod) {
		t.Fatalf("unexpected log output: %s", out)
	}
	if got := testutil.ToFloat64(m.GRPCRequests.WithLabelValues(ledgerv1.PostTransactionMethod, "FailedPrecondition")); got != 1 {
		t.Fatalf("expected 1 recorded call, got %v", got)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := middleware.RecoveryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: ledgerv1.GetStatementMethod}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal after panic, got %v", err)
	}
}

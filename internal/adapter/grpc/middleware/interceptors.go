package middleware

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iho/slotledger/internal/infrastructure/metrics"
)

// LoggingInterceptor attaches a call-scoped logger to the context and logs
// every unary call. It also records call metrics when m is not nil.
func LoggingInterceptor(logger zerolog.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()

		callLogger := logger.With().Str("method", info.FullMethod).Logger()
		ctx = callLogger.WithContext(ctx)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		duration := time.Since(start)
		m.ObserveGRPC(info.FullMethod, code.String(), duration)

		event := callLogger.Info()
		if code == codes.Internal || code == codes.Unknown {
			event = callLogger.Warn()
		}
		event.
			Str("code", code.String()).
			Dur("duration", duration).
			Msg("call completed")

		return resp, err
	}
}

// RecoveryInterceptor turns a panic in a handler into codes.Internal.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				zerolog.Ctx(ctx).Error().
					Interface("error", r).
					Str("stack", string(debug.Stack())).
					Str("method", info.FullMethod).
					Msg("panic recovered")
				err = status.Error(codes.Internal, "internal server error")
			}
		}()

		return handler(ctx, req)
	}
}

package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/iho/slotledger/internal/adapter/grpc/ledgerv1"
	"github.com/iho/slotledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the metadata key for idempotency
	IdempotencyKeyHeader = "x-idempotency-key"

	defaultIdempotencyTTL = 24 * time.Hour
	pendingResponse       = "processing"
)

// idempotentMethods lists the mutating methods and how to allocate their
// response for replay.
var idempotentMethods = map[string]func() any{
	ledgerv1.PostTransactionMethod: func() any { return new(ledgerv1.PostTransactionResponse) },
}

// storedCall is what the store keeps for a completed call.
type storedCall struct {
	RequestHash string          `json:"request_hash"`
	Response    json.RawMessage `json:"response"`
}

// IdempotencyInterceptor replays the stored response of a mutating call
// that repeats a key it has already seen. A failed call releases its key.
func IdempotencyInterceptor(store usecase.IdempotencyStore, ttl time.Duration) grpc.UnaryServerInterceptor {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		newResponse, ok := idempotentMethods[info.FullMethod]
		if !ok || store == nil {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		keys := md.Get(IdempotencyKeyHeader)
		if len(keys) == 0 {
			return handler(ctx, req)
		}
		if keys[0] == "" {
			return nil, status.Error(codes.InvalidArgument, "idempotency key cannot be empty")
		}

		cacheKey := "grpc:" + info.FullMethod + ":" + keys[0]

		requestHash, err := hashRequest(req)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to generate request hash")
		}

		exists, cached, err := store.CheckAndSet(ctx, cacheKey, nil, ttl)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("idempotency check failed")
			return nil, status.Error(codes.Unavailable, "idempotency check failed")
		}

		if exists {
			if cached == nil || string(cached) == pendingResponse {
				return nil, status.Error(codes.Aborted, "request with this idempotency key is in progress")
			}

			var call storedCall
			if err := json.Unmarshal(cached, &call); err != nil {
				return nil, status.Error(codes.Internal, "corrupt idempotent response")
			}
			if call.RequestHash != requestHash {
				return nil, status.Error(codes.InvalidArgument, "idempotency key reused with different request body")
			}

			resp := newResponse()
			if err := json.Unmarshal(call.Response, resp); err != nil {
				return nil, status.Error(codes.Internal, "corrupt idempotent response")
			}
			_ = grpc.SetHeader(ctx, metadata.Pairs("x-idempotency-replay", "true"))
			return resp, nil
		}

		resp, err := handler(ctx, req)

		storeCtx := context.WithoutCancel(ctx)
		if err != nil {
			if relErr := store.Release(storeCtx, cacheKey); relErr != nil {
				zerolog.Ctx(ctx).Warn().Err(relErr).Msg("failed to release idempotency key")
			}
			return resp, err
		}

		body, mErr := json.Marshal(resp)
		if mErr == nil {
			body, mErr = json.Marshal(storedCall{RequestHash: requestHash, Response: body})
		}
		if mErr == nil {
			mErr = store.Update(storeCtx, cacheKey, body, ttl)
		}
		if mErr != nil {
			zerolog.Ctx(ctx).Warn().Err(mErr).Msg("failed to store idempotent response")
		}

		return resp, nil
	}
}

// hashRequest fingerprints req so a reused key with a different body is
// detected.
func hashRequest(req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

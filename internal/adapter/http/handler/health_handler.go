package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// LedgerProbe reports whether the ledger regions are provisioned.
type LedgerProbe interface {
	AccountCount() int
}

// HealthHandler handles health check requests. redisClient and pool are
// optional.
type HealthHandler struct {
	ledger      LedgerProbe
	redisClient *redis.Client
	pool        *pgxpool.Pool
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(ledger LedgerProbe, redisClient *redis.Client, pool *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{
		ledger:      ledger,
		redisClient: redisClient,
		pool:        pool,
	}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 if the service is ready to accept traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]string{"status": "ready"}

	if h.ledger == nil || h.ledger.AccountCount() == 0 {
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable", "no accounts provisioned")
		return
	}
	status["ledger"] = "ok"

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unhealthy", err.Error())
			return
		}
		status["redis"] = "ok"
	}

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "postgres unhealthy", err.Error())
			return
		}
		status["postgres"] = "ok"
	}

	writeJSON(w, http.StatusOK, status)
}

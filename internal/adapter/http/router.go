package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/slotledger/internal/adapter/http/handler"
	"github.com/iho/slotledger/internal/adapter/http/middleware"
	"github.com/iho/slotledger/internal/infrastructure/metrics"
	"github.com/iho/slotledger/internal/usecase"
)

// RouterConfig holds dependencies for the router. Optional fields may be
// left nil.
type RouterConfig struct {
	LedgerHandler      *handler.LedgerHandler
	HealthHandler      *handler.HealthHandler
	ConsistencyHandler *handler.ConsistencyHandler

	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
	Gatherer         prometheus.Gatherer
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics(cfg.Metrics))

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if cfg.ConsistencyHandler != nil {
		r.Get("/ledger/consistency", cfg.ConsistencyHandler.CheckConsistency)
	}

	r.Route("/clientes/{id}", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		r.Get("/extrato", cfg.LedgerHandler.GetStatement)

		r.Group(func(r chi.Router) {
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
			}
			r.Post("/transacoes", cfg.LedgerHandler.CreateTransaction)
		})
	})

	return r
}

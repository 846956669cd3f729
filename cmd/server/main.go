package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/iho/slotledger/internal/adapter/grpc/ledgerv1"
	grpcmiddleware "github.com/iho/slotledger/internal/adapter/grpc/middleware"
	grpcserver "github.com/iho/slotledger/internal/adapter/grpc/server"
	httpAdapter "github.com/iho/slotledger/internal/adapter/http"
	"github.com/iho/slotledger/internal/adapter/http/handler"
	"github.com/iho/slotledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/slotledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/slotledger/internal/adapter/repository/redis"
	shmRepo "github.com/iho/slotledger/internal/adapter/repository/shm"
	"github.com/iho/slotledger/internal/infrastructure/config"
	"github.com/iho/slotledger/internal/infrastructure/eventpublisher"
	"github.com/iho/slotledger/internal/infrastructure/idgen"
	"github.com/iho/slotledger/internal/infrastructure/logger"
	"github.com/iho/slotledger/internal/infrastructure/metrics"
	"github.com/iho/slotledger/internal/infrastructure/postgres"
	"github.com/iho/slotledger/internal/infrastructure/redis"
	"github.com/iho/slotledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Fields: map[string]string{"ledger_path": cfg.LedgerPath},
	})
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
}

// run wires the application and blocks until ctx is cancelled or a server
// fails.
func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) error {
	m := metrics.New()

	engine, err := shmRepo.Open(engineConfig(cfg), shmRepo.WithMetrics(m), shmRepo.WithLogger(appLogger))
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			appLogger.Error().Err(err).Msg("failed to close ledger")
		}
	}()
	appLogger.Info().
		Int("accounts", engine.AccountCount()).
		Str("path", cfg.LedgerPath).
		Str("lock_takeover", cfg.LockTakeover).
		Msg("ledger ready")

	publishers := []eventpublisher.Publisher{
		eventpublisher.NewLogPublisher(logger.Component(appLogger, "events")),
	}

	// Redis idempotency store
	var redisClient *goredis.Client
	var idempotencyStore usecase.IdempotencyStore
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL, cfg.RedisConnectTimeout)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		appLogger.Info().Msg("connected to redis")
	}

	// Postgres mirror
	var pool *pgxpool.Pool
	if cfg.MirrorDatabaseURL != "" {
		mirror, mirrorPool, err := openMirror(ctx, cfg, engine, appLogger)
		if err != nil {
			return err
		}
		defer mirrorPool.Close()
		pool = mirrorPool
		publishers = append(publishers, mirror)
	}

	// Kafka
	if cfg.KafkaEnabled() {
		kafkaPublisher := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				appLogger.Error().Err(err).Msg("failed to close kafka writer")
			}
		}()
		publishers = append(publishers, kafkaPublisher)
		appLogger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	}

	// Bind the gRPC port before anything starts in the background so a busy
	// port fails fast.
	grpcListener, err := listenGRPC(cfg.GRPCPort)
	if err != nil {
		return err
	}

	dispatcher := eventpublisher.NewDispatcher(eventpublisher.Config{
		Publishers: publishers,
		Logger:     logger.Component(appLogger, "events"),
		Metrics:    m,
		BufferSize: cfg.EventBuffer,
	})
	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Start(dispatcherCtx)
	}()

	ledgerUC := usecase.NewLedgerUseCase(engine, dispatcher, idgen.NewULIDGenerator(),
		usecase.WithLedgerLogger(logger.Component(appLogger, "ledger_usecase")))

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go rateLimiter.Run(ctx, time.Minute)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC),
		HealthHandler:      handler.NewHealthHandler(engine, redisClient, pool),
		ConsistencyHandler: handler.NewConsistencyHandler(usecase.NewReconciliationUseCase(engine)),
		Logger:             logger.Component(appLogger, "http"),
		Metrics:            m,
		IdempotencyStore:   idempotencyStore,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        rateLimiter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		appLogger.Info().Str("port", cfg.HTTPPort).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	var healthServer *health.Server
	if grpcListener != nil {
		grpcServer, healthServer = newGRPCServer(ledgerUC, idempotencyStore, cfg.IdempotencyTTL,
			logger.Component(appLogger, "grpc"), m)
		go func() {
			appLogger.Info().Str("port", cfg.GRPCPort).Msg("starting grpc server")
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info().Msg("shutting down server...")
	case runErr = <-errCh:
		appLogger.Error().Err(runErr).Msg("server error, shutting down")
	}

	if healthServer != nil {
		healthServer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("http server forced to shutdown")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	// Stop the dispatcher only after in-flight requests have queued their
	// events.
	stopDispatcher()
	<-dispatcherDone

	if err := engine.Sync(); err != nil {
		appLogger.Error().Err(err).Msg("failed to sync ledger")
	}

	appLogger.Info().Msg("server stopped")
	return runErr
}

// listenGRPC binds the gRPC port. An empty port disables gRPC and returns a
// nil listener.
func listenGRPC(port string) (net.Listener, error) {
	if port == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	return lis, nil
}

func engineConfig(cfg *config.Config) shmRepo.Config {
	return shmRepo.Config{
		Limits:              cfg.LedgerLimits,
		TransactionCapacity: cfg.LedgerTxnCapacity,
		Dir:                 cfg.LedgerPath,
		Reset:               cfg.LedgerReset,
		Lock:                cfg.Lock(),
	}
}

func openMirror(ctx context.Context, cfg *config.Config, engine *shmRepo.Engine, appLogger zerolog.Logger) (*postgresRepo.MirrorRepository, *pgxpool.Pool, error) {
	mirrorLogger := logger.Component(appLogger, "mirror")

	if cfg.MirrorMigrate {
		if err := postgres.RunMigrations(cfg.MirrorDatabaseURL, mirrorLogger); err != nil {
			return nil, nil, err
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.MirrorTimeout)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(connectCtx, postgres.PoolConfig{
		DatabaseURL:    cfg.MirrorDatabaseURL,
		MaxConns:       cfg.MirrorMaxConns,
		MinConns:       cfg.MirrorMinConns,
		ConnectTimeout: cfg.MirrorTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	mirror := postgresRepo.NewMirrorRepository(pool, postgresRepo.NewRetrier(mirrorLogger), mirrorLogger)

	accounts, err := engine.Accounts(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := mirror.SeedClients(connectCtx, accounts); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to seed mirror: %w", err)
	}

	mirrorLogger.Info().Int("clients", len(accounts)).Msg("postgres mirror enabled")
	return mirror, pool, nil
}

// newGRPCServer returns a server exposing the ledger service and the
// standard gRPC health service, already reporting SERVING.
func newGRPCServer(ledgerUC grpcserver.LedgerUseCase, store usecase.IdempotencyStore, ttl time.Duration, appLogger zerolog.Logger, m *metrics.Metrics) (*grpc.Server, *health.Server) {
	interceptors := []grpc.UnaryServerInterceptor{
		grpcmiddleware.LoggingInterceptor(appLogger, m),
		grpcmiddleware.RecoveryInterceptor(),
	}
	if store != nil {
		interceptors = append(interceptors, grpcmiddleware.IdempotencyInterceptor(store, ttl))
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	ledgerv1.RegisterLedgerServiceServer(srv, grpcserver.NewLedgerServer(ledgerUC))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ledgerv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/slotledger/internal/adapter/http"
	"github.com/iho/slotledger/internal/adapter/http/dto"
	"github.com/iho/slotledger/internal/adapter/http/handler"
	shmRepo "github.com/iho/slotledger/internal/adapter/repository/shm"
	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/infrastructure/eventpublisher"
	"github.com/iho/slotledger/internal/infrastructure/idgen"
	"github.com/iho/slotledger/internal/infrastructure/metrics"
	"github.com/iho/slotledger/internal/infrastructure/postgres"
	"github.com/iho/slotledger/internal/usecase"
)

// DefaultLimits are the overdraft limits of the five standard accounts.
var DefaultLimits = []int64{100000, 80000, 1000000, 10000000, 500000}

// NewEngine opens an in-memory ledger with the given limits, or
// DefaultLimits when none are given.
func NewEngine(t *testing.T, capacity int, limits ...int64) *shmRepo.Engine {
	t.Helper()

	if len(limits) == 0 {
		limits = DefaultLimits
	}
	engine, err := shmRepo.Open(shmRepo.Config{Limits: limits, TransactionCapacity: capacity})
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*domain.TransactionPostedEvent
}

func (p *RecordingPublisher) Name() string { return "recording" }

func (p *RecordingPublisher) Publish(_ context.Context, event *domain.TransactionPostedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the published events.
func (p *RecordingPublisher) Events() []*domain.TransactionPostedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.TransactionPostedEvent(nil), p.events...)
}

// TestServer is the full HTTP stack around one engine.
type TestServer struct {
	*httptest.Server
	Engine    *shmRepo.Engine
	Publisher *RecordingPublisher
	Registry  *prometheus.Registry

	stopDispatcher func()
}

// NewTestServer wires the router, use cases and dispatcher around engine.
func NewTestServer(t *testing.T, engine *shmRepo.Engine) *TestServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	publisher := &RecordingPublisher{}

	dispatcher := eventpublisher.NewDispatcher(eventpublisher.Config{
		Publishers: []eventpublisher.Publisher{publisher},
		Logger:     zerolog.Nop(),
		Metrics:    m,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Start(ctx)
	}()

	ledgerUC := usecase.NewLedgerUseCase(engine, dispatcher, idgen.NewULIDGenerator())
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC),
		HealthHandler:      handler.NewHealthHandler(engine, nil, nil),
		ConsistencyHandler: handler.NewConsistencyHandler(usecase.NewReconciliationUseCase(engine)),
		Logger:             zerolog.Nop(),
		Metrics:            m,
		Gatherer:           reg,
	})

	ts := &TestServer{
		Server:    httptest.NewServer(router),
		Engine:    engine,
		Publisher: publisher,
		Registry:  reg,
		stopDispatcher: func() {
			cancel()
			<-done
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close stops the HTTP server and drains the dispatcher. It is safe to call
// more than once.
func (s *TestServer) Close() {
	s.Server.Close()
	if s.stopDispatcher != nil {
		s.stopDispatcher()
		s.stopDispatcher = nil
	}
}

// Post sends POST /clientes/{id}/transacoes and decodes a 200 response.
func (s *TestServer) Post(t *testing.T, id, valor any, tipo, descricao string) (int, *dto.TransactionResponse) {
	t.Helper()

	body, err := json.Marshal(map[string]any{"valor": valor, "tipo": tipo, "descricao": descricao})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return s.PostRaw(t, id, body)
}

// PostRaw sends body as is.
func (s *TestServer) PostRaw(t *testing.T, id any, body []byte) (int, *dto.TransactionResponse) {
	t.Helper()

	resp, err := s.Client().Post(fmt.Sprintf("%s/clientes/%v/transacoes", s.URL, id), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Errorf("post failed: %v", err)
		return 0, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	var out dto.TransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Errorf("decode failed: %v", err)
	}
	return resp.StatusCode, &out
}

// Statement sends GET /clientes/{id}/extrato and decodes a 200 response.
func (s *TestServer) Statement(t *testing.T, id any) (int, *dto.StatementResponse) {
	t.Helper()

	resp, err := s.Client().Get(fmt.Sprintf("%s/clientes/%v/extrato", s.URL, id))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	var out dto.StatementResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp.StatusCode, &out
}

// WaitForEvents polls until the publisher has seen n events.
func (s *TestServer) WaitForEvents(t *testing.T, n int) []*domain.TransactionPostedEvent {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		events := s.Publisher.Events()
		if len(events) >= n {
			return events
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d events, have %d", n, len(events))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// MirrorDB is a migrated Postgres mirror database.
type MirrorDB struct {
	Pool *pgxpool.Pool
	t    *testing.T
}

// NewMirrorDB connects to MIRROR_DATABASE_URL and migrates it. The test is
// skipped when the variable is unset.
func NewMirrorDB(t *testing.T) *MirrorDB {
	t.Helper()

	dbURL := os.Getenv("MIRROR_DATABASE_URL")
	if dbURL == "" {
		t.Skip("MIRROR_DATABASE_URL not set")
	}

	if err := postgres.RunMigrations(dbURL, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dbURL, 4, 1)
	if err != nil {
		t.Fatalf("failed to connect to mirror database: %v", err)
	}
	t.Cleanup(pool.Close)

	db := &MirrorDB{Pool: pool, t: t}
	db.TruncateAll(ctx)
	return db
}

// TruncateAll removes all mirrored rows.
func (db *MirrorDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	if _, err := db.Pool.Exec(ctx, `TRUNCATE TABLE transactions, clients CASCADE`); err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

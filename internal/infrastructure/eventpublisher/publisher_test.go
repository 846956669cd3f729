package eventpublisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/infrastructure/metrics"
)

type stubPublisher struct {
	name string
	err  error

	mu        sync.Mutex
	published []*domain.TransactionPostedEvent
}

func (s *stubPublisher) Name() string { return s.name }

func (s *stubPublisher) Publish(ctx context.Context, event *domain.TransactionPostedEvent) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.published = append(s.published, event)
	s.mu.Unlock()
	return nil
}

func (s *stubPublisher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func newEvent(seq uint32) *domain.TransactionPostedEvent {
	return &domain.TransactionPostedEvent{
		ID:         "evt",
		EventType:  domain.EventTypeTransactionPosted,
		AccountID:  1,
		SequenceID: seq,
		Amount:     10,
		Kind:       "c",
	}
}

func TestDispatcher_DropsWhenBufferFull(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	d := NewDispatcher(Config{Logger: zerolog.Nop(), Metrics: m, BufferSize: 2})

	d.Dispatch(newEvent(1))
	d.Dispatch(newEvent(2))
	d.Dispatch(newEvent(3))

	if d.Pending() != 2 {
		t.Fatalf("expected 2 queued events, got %d", d.Pending())
	}
	if got := testutil.ToFloat64(m.EventsDispatched.WithLabelValues("dropped")); got != 1 {
		t.Fatalf("expected 1 dropped event, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsDispatched.WithLabelValues("queued")); got != 2 {
		t.Fatalf("expected 2 queued events, got %v", got)
	}
}

func TestDispatcher_FansOutAndSurvivesPublisherErrors(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	good := &stubPublisher{name: "good"}
	bad := &stubPublisher{name: "bad", err: errors.New("broker down")}
	d := NewDispatcher(Config{
		Publishers: []Publisher{bad, good},
		Logger:     zerolog.Nop(),
		Metrics:    m,
		BufferSize: 8,
	})

	for i := uint32(1); i <= 3; i++ {
		d.Dispatch(newEvent(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	deadline := time.Now().Add(time.Second)
	for good.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if good.count() != 3 {
		t.Fatalf("expected 3 events on good publisher, got %d", good.count())
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("bad", "error")); got != 3 {
		t.Fatalf("expected 3 publish errors, got %v", got)
	}
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	pub := &stubPublisher{name: "stub"}
	d := NewDispatcher(Config{Publishers: []Publisher{pub}, Logger: zerolog.Nop(), BufferSize: 16})

	for i := uint32(1); i <= 5; i++ {
		d.Dispatch(newEvent(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}

	if pub.count() != 5 {
		t.Fatalf("expected queued events to be drained, got %d", pub.count())
	}
	if d.Pending() != 0 {
		t.Fatalf("expected empty buffer after drain, got %d", d.Pending())
	}
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zerolog.Nop())

	if p.Name() != "log" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	if err := p.Publish(context.Background(), newEvent(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

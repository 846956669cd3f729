package eventpublisher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/infrastructure/metrics"
)

// Publisher delivers events to an external system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event *domain.TransactionPostedEvent) error
}

// Config for Dispatcher.
type Config struct {
	Publishers     []Publisher
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	BufferSize     int           // Events held before Dispatch starts dropping
	PublishTimeout time.Duration // Per publisher call
	DrainTimeout   time.Duration // How long Start drains after ctx is done
}

// Dispatcher hands posted-transaction events from the request path to
// publishers on a single background worker. Dispatch never blocks.
type Dispatcher struct {
	events         chan *domain.TransactionPostedEvent
	publishers     []Publisher
	logger         zerolog.Logger
	metrics        *metrics.Metrics
	publishTimeout time.Duration
	drainTimeout   time.Duration
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}

	return &Dispatcher{
		events:         make(chan *domain.TransactionPostedEvent, cfg.BufferSize),
		publishers:     cfg.Publishers,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		publishTimeout: cfg.PublishTimeout,
		drainTimeout:   cfg.DrainTimeout,
	}
}

// Dispatch queues event, dropping it when the buffer is full.
func (d *Dispatcher) Dispatch(event *domain.TransactionPostedEvent) {
	select {
	case d.events <- event:
		d.metrics.ObserveDispatch(false)
	default:
		d.metrics.ObserveDispatch(true)
		d.logger.Warn().
			Str("event_id", event.ID).
			Int("account_id", event.AccountID).
			Uint32("sequence_id", event.SequenceID).
			Msg("event buffer full, dropping event")
	}
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.events)
}

// Start runs the worker until ctx is cancelled, then drains what is
// already queued within the drain timeout.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info().
		Int("publishers", len(d.publishers)).
		Int("buffer", cap(d.events)).
		Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.logger.Info().Msg("event dispatcher stopped")
			return ctx.Err()
		case event := <-d.events:
			d.publish(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	drained := 0
	for {
		select {
		case event := <-d.events:
			d.publish(ctx, event)
			drained++
		default:
			if drained > 0 {
				d.logger.Info().Int("count", drained).Msg("drained queued events")
			}
			return
		}
		if ctx.Err() != nil {
			d.logger.Warn().Int("remaining", len(d.events)).Msg("drain timeout, events lost")
			return
		}
	}
}

// publish fans event out to every publisher. Failures are logged and
// counted; one failing publisher does not stop the others.
func (d *Dispatcher) publish(ctx context.Context, event *domain.TransactionPostedEvent) {
	for _, p := range d.publishers {
		pctx, cancel := context.WithTimeout(ctx, d.publishTimeout)
		err := p.Publish(pctx, event)
		cancel()

		d.metrics.ObservePublish(p.Name(), err)
		if err != nil {
			d.logger.Error().
				Err(err).
				Str("publisher", p.Name()).
				Str("event_id", event.ID).
				Int("account_id", event.AccountID).
				Uint32("sequence_id", event.SequenceID).
				Msg("failed to publish event")
		}
	}
}

// LogPublisher logs every event at debug level.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Name implements Publisher.
func (p *LogPublisher) Name() string { return "log" }

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.TransactionPostedEvent) error {
	p.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Int("account_id", event.AccountID).
		Uint32("sequence_id", event.SequenceID).
		Int64("amount", event.Amount).
		Str("kind", event.Kind).
		Int64("balance", event.Balance).
		Msg("event published")

	return nil
}

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Lock metrics
	LockAcquisitions *prometheus.CounterVec
	LockAttempts     *prometheus.HistogramVec
	LockTakeovers    *prometheus.CounterVec

	// Ledger metrics
	DeltaResults         *prometheus.CounterVec
	TransactionsAppended prometheus.Counter
	CapacityErrors       prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
	AccountBalance       *prometheus.GaugeVec

	// Event metrics
	EventsDispatched *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	GRPCRequests *prometheus.CounterVec
	GRPCDuration *prometheus.HistogramVec
}

// New creates metrics registered with the default Prometheus registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates metrics registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Lock metrics
		LockAcquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotledger_lock_acquisitions_total",
				Help: "Total busy-wait lock acquisitions by table and outcome",
			},
			[]string{"table", "outcome"},
		),
		LockAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slotledger_lock_attempts",
				Help:    "Compare-and-swap attempts needed per acquisition",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 1000},
			},
			[]string{"table"},
		),
		LockTakeovers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotledger_lock_takeovers_total",
				Help: "Total forced lock takeovers by table",
			},
			[]string{"table"},
		),

		// Ledger metrics
		DeltaResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotledger_delta_results_total",
				Help: "Balance mutations by result",
			},
			[]string{"result"},
		),
		TransactionsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotledger_transactions_appended_total",
			Help: "Total transaction rows appended",
		}),
		CapacityErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "slotledger_capacity_errors_total",
			Help: "Total appends refused because a transaction log was full",
		}),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slotledger_operation_duration_seconds",
				Help:    "Duration of ledger engine operations",
				Buckets: []float64{.000001, .000005, .00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"operation"},
		),
		AccountBalance: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slotledger_account_balance",
				Help: "Current account balance in cents",
			},
			[]string{"account_id"},
		),

		// Event metrics
		EventsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotledger_events_dispatched_total",
				Help: "Events handed to the dispatcher by result",
			},
			[]string{"result"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotledger_events_published_total",
				Help: "Events delivered to publishers by publisher and status",
			},
			[]string{"publisher", "status"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slotledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"method", "path"},
		),
		GRPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotledger_grpc_requests_total",
				Help: "Total gRPC unary calls",
			},
			[]string{"method", "code"},
		),
		GRPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slotledger_grpc_duration_seconds",
				Help:    "gRPC unary call duration",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"method"},
		),
	}
}

// ObserveLock records one lock acquisition.
func (m *Metrics) ObserveLock(table string, attempts int, contended, takenOver bool) {
	if m == nil {
		return
	}
	outcome := "uncontended"
	switch {
	case takenOver:
		outcome = "takeover"
		m.LockTakeovers.WithLabelValues(table).Inc()
	case contended:
		outcome = "contended"
	}
	m.LockAcquisitions.WithLabelValues(table, outcome).Inc()
	m.LockAttempts.WithLabelValues(table).Observe(float64(attempts))
}

// ObserveDelta records the result of a balance mutation.
func (m *Metrics) ObserveDelta(accountID int, balance int64, rejected bool) {
	if m == nil {
		return
	}
	if rejected {
		m.DeltaResults.WithLabelValues("rejected").Inc()
		return
	}
	m.DeltaResults.WithLabelValues("applied").Inc()
	m.AccountBalance.WithLabelValues(strconv.Itoa(accountID)).Set(float64(balance))
}

// ObserveAppend records an append attempt.
func (m *Metrics) ObserveAppend(capacityExceeded bool) {
	if m == nil {
		return
	}
	if capacityExceeded {
		m.CapacityErrors.Inc()
		return
	}
	m.TransactionsAppended.Inc()
}

// ObserveOperation records how long an engine operation took.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetBalance sets the balance gauge for an account.
func (m *Metrics) SetBalance(accountID int, balance int64) {
	if m == nil {
		return
	}
	m.AccountBalance.WithLabelValues(strconv.Itoa(accountID)).Set(float64(balance))
}

// ObserveDispatch records whether an event was queued or dropped.
func (m *Metrics) ObserveDispatch(dropped bool) {
	if m == nil {
		return
	}
	if dropped {
		m.EventsDispatched.WithLabelValues("dropped").Inc()
		return
	}
	m.EventsDispatched.WithLabelValues("queued").Inc()
}

// ObservePublish records a publisher delivery.
func (m *Metrics) ObservePublish(publisher string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(publisher, status).Inc()
}

// ObserveHTTP records an HTTP request.
func (m *Metrics) ObserveHTTP(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveGRPC records a gRPC unary call.
func (m *Metrics) ObserveGRPC(method, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCDuration.WithLabelValues(method).Observe(duration.Seconds())
}

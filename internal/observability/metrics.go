package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	storeOps        *prometheus.CounterVec
	visits          prometheus.Counter
	redemptions     prometheus.Counter
	rollbacks       *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loyalty_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_http_errors_total",
			Help: "Total number of HTTP errors by domain code",
		}, []string{"method", "path", "code"}),
		storeOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_store_operations_total",
			Help: "Account store operations by mode and outcome",
		}, []string{"mode", "operation", "outcome"}),
		visits: factory.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_visits_recorded_total",
			Help: "Visits durably recorded",
		}),
		redemptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_tiers_redeemed_total",
			Help: "Tier rewards durably redeemed",
		}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_optimistic_rollbacks_total",
			Help: "Optimistic session updates rolled back after a failed write",
		}, []string{"operation"}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

// RecordStoreOp counts one store call.
func (m *Metrics) RecordStoreOp(mode, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.storeOps.WithLabelValues(mode, operation, outcome).Inc()
}

// RecordVisit counts a durable visit write.
func (m *Metrics) RecordVisit() {
	if m == nil {
		return
	}
	m.visits.Inc()
}

// RecordRedemption counts a durable redemption write.
func (m *Metrics) RecordRedemption() {
	if m == nil {
		return
	}
	m.redemptions.Inc()
}

// RecordRollback counts a compensated optimistic update.
func (m *Metrics) RecordRollback(operation string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(operation).Inc()
}

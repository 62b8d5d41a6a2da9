package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

const namespace = "blockcred"

// Metrics owns a private Prometheus registry and the BlockCred collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	ledgerOps       *prometheus.CounterVec
	ledgerDuration  *prometheus.HistogramVec
	eventsDelivered *prometheus.CounterVec
}

// New registers the collectors, including the Go runtime and process ones.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Mutating ledger calls by method and outcome",
		}, []string{"method", "outcome"}),
		ledgerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Latency of mutating ledger calls",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 15, 30},
		}, []string{"method"}),
		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Registry events handed to sinks",
		}, []string{"sink", "event", "status"}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.ledgerOps,
		m.ledgerDuration,
		m.eventsDelivered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveOperation records a mutating ledger call.
func (m *Metrics) ObserveOperation(method, outcome string, elapsed time.Duration) {
	m.ledgerOps.WithLabelValues(method, outcome).Inc()
	m.ledgerDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveDelivery records an event handed to a sink.
func (m *Metrics) ObserveDelivery(sink string, event domain.EventName, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.eventsDelivered.WithLabelValues(sink, string(event), status).Inc()
}

// RegisterLedgerGauges exposes ledger counters that are read on scrape.
func (m *Metrics) RegisterLedgerGauges(height, certificates, issuers func() float64) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_height",
			Help:      "Number of committed registry calls",
		}, height),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "certificates_total",
			Help:      "Certificates held by the registry",
		}, certificates),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "issuers_total",
			Help:      "Registered issuers",
		}, issuers),
	)
}

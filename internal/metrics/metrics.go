// Package metrics exposes Prometheus metrics for the fanliga server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for gateway calls.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeMalformed    = "malformed"
	OutcomeUnavailable  = "unavailable"
	OutcomeCanceled     = "canceled"
	OutcomeError        = "error"
)

// Manager owns the collectors and the registry they are registered on.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry
	runtime          bool

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec

	sessionTransitions *prometheus.CounterVec
	viewsDiscarded     *prometheus.CounterVec
	changesPublished   *prometheus.CounterVec

	mirrorSyncs       *prometheus.CounterVec
	mirrorLastSuccess prometheus.Gauge
}

// Option configures a Manager.
type Option func(*Manager)

func WithNamespace(namespace string) Option {
	return func(m *Manager) { m.namespace = namespace }
}

func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) { m.histogramBuckets = buckets }
}

// WithRegistry registers the collectors on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) { m.registry = registry }
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) { m.runtime = true }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fanliga",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.gatewayCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "gateway",
		Name:      "calls_total",
		Help:      "Total number of remote store calls by operation and outcome",
	}, []string{"op", "outcome"})

	m.gatewayLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Remote store call latency in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"op"})

	m.sessionTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session state transitions by target state",
	}, []string{"state"})

	m.viewsDiscarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "views",
		Name:      "discarded_total",
		Help:      "View loads abandoned because the requester went away",
	}, []string{"view"})

	m.changesPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "amqp",
		Name:      "changes_published_total",
		Help:      "Ledger change notifications by kind and result",
	}, []string{"kind", "result"})

	m.mirrorSyncs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "mirror",
		Name:      "syncs_total",
		Help:      "Spreadsheet mirror syncs by trigger and result",
	}, []string{"trigger", "result"})

	m.mirrorLastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "mirror",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful mirror sync",
	})
}

// Registry returns the registry the collectors live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Manager) ObserveGatewayCall(op, outcome string, elapsed time.Duration) {
	m.gatewayCalls.WithLabelValues(op, outcome).Inc()
	m.gatewayLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Manager) SessionTransition(state string) {
	m.sessionTransitions.WithLabelValues(state).Inc()
}

func (m *Manager) ViewDiscarded(view string) {
	m.viewsDiscarded.WithLabelValues(view).Inc()
}

func (m *Manager) ChangePublished(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.changesPublished.WithLabelValues(kind, result).Inc()
}

// MirrorSynced records one mirror sync attempt finished at now.
func (m *Manager) MirrorSynced(trigger string, err error, now time.Time) {
	if err != nil {
		m.mirrorSyncs.WithLabelValues(trigger, "error").Inc()
		return
	}
	m.mirrorSyncs.WithLabelValues(trigger, "ok").Inc()
	m.mirrorLastSuccess.Set(float64(now.Unix()))
}

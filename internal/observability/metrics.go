package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/courier-portal/internal/events"
)

// Metrics holds the portal's Prometheus collectors. Each instance owns its
// registry so tests can build one without clashing on global state.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	sessionEvents   *prometheus.CounterVec
	liveSessions    prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "HTTP requests served by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request latency by route and method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_errors_total",
				Help: "Error responses by route, method and error code.",
			},
			[]string{"route", "method", "code"},
		),
		sessionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_session_events_total",
				Help: "Session lifecycle events by type and identity.",
			},
			[]string{"type", "user_type"},
		),
		liveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_live_sessions",
				Help: "Tab sessions currently held in memory.",
			},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.sessionEvents,
		m.liveSessions,
		prometheus.NewGoCollector(),
	)
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// SetLiveSessions reports the current number of tab sessions.
func (m *Metrics) SetLiveSessions(n int) {
	if m == nil {
		return
	}
	m.liveSessions.Set(float64(n))
}

// Subscribe counts every session event published on d.
func (m *Metrics) Subscribe(d events.Dispatcher) {
	if m == nil || d == nil {
		return
	}
	events.SubscribeAll(d, func(_ context.Context, e events.Event) error {
		m.sessionEvents.WithLabelValues(string(e.Type), string(e.UserType)).Inc()
		return nil
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics holds the Prometheus instruments of the auth server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for gophauth
type Metrics struct {
	registry *prometheus.Registry

	// AuthEvents counts identity and token operations by outcome.
	AuthEvents *prometheus.CounterVec
	// GateDecisions counts session gate results.
	GateDecisions *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a Metrics instance on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AuthEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_auth_events_total",
				Help: "Identity and token operations by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_gate_decisions_total",
				Help: "Session gate decisions",
			},
			[]string{"decision"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gophauth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Outcome is "success" for a nil error and the error kind otherwise.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return common.KindOf(err).String()
}

// RecordAuth counts one auth event.
func (m *Metrics) RecordAuth(event string, err error) {
	m.AuthEvents.WithLabelValues(event, Outcome(err)).Inc()
}

// RecordGate counts one gate decision.
func (m *Metrics) RecordGate(err error) {
	decision := "admitted"
	if err != nil {
		decision = common.KindOf(err).String()
	}
	m.GateDecisions.WithLabelValues(decision).Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

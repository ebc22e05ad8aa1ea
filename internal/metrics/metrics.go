// Package metrics holds the Prometheus collectors of the placement server.
//
// All recording methods are safe on a nil *Metrics, so services built
// without metrics (tests, CLI commands) need no stubs.
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

const namespace = "placement"

// Metrics is the set of domain and transport collectors.
type Metrics struct {
	registry *prometheus.Registry

	submitted     prometheus.Counter
	transitions   *prometheus.CounterVec
	issued        prometheus.Counter
	revoked       prometheus.Counter
	verifications *prometheus.CounterVec
	aiFallbacks   *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_submitted_total",
			Help:      "Applications accepted by Submit.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "application_transitions_total",
			Help:      "Timeline events recorded, by event.",
		}, []string{"event"}),
		issued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates generated.",
		}),
		revoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_revoked_total",
			Help:      "Revoke calls that succeeded.",
		}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_verifications_total",
			Help:      "Public verification lookups, by outcome.",
		}, []string{"reason"}),
		aiFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_fallbacks_total",
			Help:      "AI collaborator calls answered by the local fallback.",
		}, []string{"operation"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ApplicationSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) ApplicationTransitioned(event string) {
	if m != nil {
		m.transitions.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) CertificateIssued() {
	if m != nil {
		m.issued.Inc()
	}
}

func (m *Metrics) CertificateRevoked() {
	if m != nil {
		m.revoked.Inc()
	}
}

func (m *Metrics) CertificateVerified(reason string) {
	if m != nil {
		m.verifications.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) AIFallback(operation string) {
	if m != nil {
		m.aiFallbacks.WithLabelValues(operation).Inc()
	}
}

// ObserveHTTP records one request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m != nil {
		m.httpDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
	}
}

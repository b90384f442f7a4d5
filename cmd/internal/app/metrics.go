package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"closet/cmd/internal/apperr"
)

// Metrics owns the server's Prometheus registry.
//
// It observes HTTP requests, guard failures, refresh outcomes and rate-limit
// rejections. Each App gets its own registry so tests can build several.
type Metrics struct {
	reg *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	authFailure *prometheus.CounterVec
	refresh     *prometheus.CounterVec
	errors      *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// NewMetrics registers the closet collectors plus the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "closet_http_requests_total",
			Help: "HTTP requests by method and status class.",
		}, []string{"method", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "closet_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		authFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "closet_auth_failures_total",
			Help: "Rejected bearer requests by failure code.",
		}, []string{"code"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "closet_refresh_total",
			Help: "Refresh endpoint outcomes.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "closet_http_errors_total",
			Help: "Error responses by code.",
		}, []string{"code"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "closet_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
	m.reg.MustRegister(
		m.requests,
		m.duration,
		m.authFailure,
		m.refresh,
		m.errors,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	method = normalizeMethod(method)
	m.requests.WithLabelValues(method, statusClass(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

// AuthFailure counts one guard rejection.
func (m *Metrics) AuthFailure(code string) {
	m.authFailure.WithLabelValues(code).Inc()
}

// Refresh counts one refresh endpoint outcome.
func (m *Metrics) Refresh(outcome string) {
	m.refresh.WithLabelValues(outcome).Inc()
}

// RateLimited counts one limiter rejection.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// ObserveError is installed as the apperr.Responder observer.
func (m *Metrics) ObserveError(e *apperr.Error) {
	if e == nil {
		return
	}
	code := e.Code
	if code == "" {
		code = "unknown"
	}
	m.errors.WithLabelValues(code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// normalizeMethod bounds label cardinality to the standard verbs.
func normalizeMethod(method string) string {
	switch m := strings.ToUpper(method); m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return m
	default:
		return "OTHER"
	}
}

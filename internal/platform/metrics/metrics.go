package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the set of measurements the service emits.
type Recorder interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncConversions(dataType, outcome string)
	IncConsentSaves(outcome string)
	IncPermissionRequests(platform, outcome string)
	IncShares(status string)
	IncIdempotentReplays()
	ObserveStoreDuration(op string, duration time.Duration)
	Handler() http.Handler
}

type Provider struct {
	registry           *prometheus.Registry
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	conversions        *prometheus.CounterVec
	consentSaves       *prometheus.CounterVec
	permissionRequests *prometheus.CounterVec
	shares             *prometheus.CounterVec
	idempotentReplays  prometheus.Counter
	storeDuration      *prometheus.HistogramVec
}

func (m *Provider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *Provider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Provider) IncConversions(dataType, outcome string) {
	m.conversions.WithLabelValues(dataType, outcome).Inc()
}

func (m *Provider) IncConsentSaves(outcome string) {
	m.consentSaves.WithLabelValues(outcome).Inc()
}

func (m *Provider) IncPermissionRequests(platform, outcome string) {
	m.permissionRequests.WithLabelValues(platform, outcome).Inc()
}

func (m *Provider) IncShares(status string) {
	m.shares.WithLabelValues(status).Inc()
}

func (m *Provider) IncIdempotentReplays() {
	m.idempotentReplays.Inc()
}

func (m *Provider) ObserveStoreDuration(op string, duration time.Duration) {
	m.storeDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// Handler serves the provider's registry in the Prometheus text format.
func (m *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// New returns a Prometheus-backed Recorder, or a no-op Recorder when
// metrics are disabled. Each Provider owns its registry.
func New(enabled bool) Recorder {
	if !enabled {
		return Noop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Provider{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthshare_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthshare_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthshare_conversions_total",
			Help: "Observations converted to FHIR resources by data type and outcome",
		}, []string{"data_type", "outcome"}),

		consentSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthshare_consent_saves_total",
			Help: "Consent record saves by outcome",
		}, []string{"outcome"}),

		permissionRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthshare_permission_requests_total",
			Help: "Health platform permission requests by platform and outcome",
		}, []string{"platform", "outcome"}),

		shares: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthshare_shares_total",
			Help: "Share attempts by terminal status",
		}, []string{"status"}),

		idempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthshare_idempotent_replays_total",
			Help: "Responses replayed from the idempotency cache",
		}),

		storeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthshare_store_duration_seconds",
			Help:    "Key-value store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// Noop returns a Recorder that discards everything.
func Noop() Recorder {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (noopMetrics) IncConversions(_, _ string)                       {}
func (noopMetrics) IncConsentSaves(_ string)                         {}
func (noopMetrics) IncPermissionRequests(_, _ string)                {}
func (noopMetrics) IncShares(_ string)                               {}
func (noopMetrics) IncIdempotentReplays()                            {}
func (noopMetrics) ObserveStoreDuration(_ string, _ time.Duration)   {}
func (noopMetrics) Handler() http.Handler                            { return http.NotFoundHandler() }

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RegistrationsSubmitted prometheus.Counter
	StatusTransitions      *prometheus.CounterVec
	AttachmentsAdded       *prometheus.CounterVec
	IdentityResolutions    *prometheus.CounterVec
	AuditFailures          prometheus.Counter
	SettingsCache          *prometheus.CounterVec
	HTTPDuration           *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RegistrationsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "landtrust_registrations_submitted_total",
			Help: "Registrations created (idempotent resubmissions excluded).",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landtrust_registration_transitions_total",
			Help: "Registration status changes by target status.",
		}, []string{"to"}),
		AttachmentsAdded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landtrust_attachments_added_total",
			Help: "Attachments stored by kind.",
		}, []string{"kind"}),
		IdentityResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landtrust_identity_resolutions_total",
			Help: "Identity resolutions by outcome (linked, adopted, created, unchanged).",
		}, []string{"outcome"}),
		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "landtrust_audit_append_failures_total",
			Help: "Admin event writes that failed and rolled back their unit of work.",
		}),
		SettingsCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landtrust_settings_cache_total",
			Help: "Settings cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "landtrust_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncrementSubmitted() {
	m.RegistrationsSubmitted.Inc()
}

func (m *Metrics) IncrementTransition(to string) {
	m.StatusTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncrementAttachment(kind string) {
	m.AttachmentsAdded.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementResolution(outcome string) {
	m.IdentityResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementSettingsCache(result string) {
	m.SettingsCache.WithLabelValues(result).Inc()
}

// Instrument records request latency keyed by the matched chi route pattern
// rather than the raw path, keeping label cardinality bounded.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

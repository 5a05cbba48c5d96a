// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	ingestions        *prometheus.CounterVec
	analysisDuration  prometheus.Histogram
	suggestions       *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
	eventsDropped     prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songform_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "songform_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songform_ingestions_total",
			Help: "Song ingestions by outcome.",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "songform_analysis_duration_seconds",
			Help:    "Latency of calls to the analysis service.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songform_suggestions_generated_total",
			Help: "Suggestions generated by type.",
		}, []string{"type"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songform_events_published_total",
			Help: "Events handed to the publisher by type and result.",
		}, []string{"type", "result"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "songform_events_dropped_total",
			Help: "Events dropped because the dispatch queue was full.",
		}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.ingestions,
		m.analysisDuration,
		m.suggestions,
		m.eventsPublished,
		m.eventsDropped,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records request count and latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Ingestion(outcome string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AnalysisCall(d time.Duration) {
	if m == nil {
		return
	}
	m.analysisDuration.Observe(d.Seconds())
}

func (m *Metrics) SuggestionGenerated(kind string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventPublished(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

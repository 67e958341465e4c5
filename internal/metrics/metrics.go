package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess    = "success"
	ResultParseError = "parse_error"
	ResultError      = "error"

	OutboxPublished    = "published"
	OutboxFailed       = "failed"
	OutboxDeadLettered = "dead_letter"
)

// Metrics holds the collectors for profile extraction.
type Metrics struct {
	ExtractionsTotal   *prometheus.CounterVec
	CacheLookupsTotal  *prometheus.CounterVec
	ReviewsExtracted   prometheus.Counter
	MissingFieldsTotal *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	OutboxEventsTotal  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.NewRegistry())
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seller_profile_extractions_total",
				Help: "Profile extractions by result",
			},
			[]string{"result"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seller_profile_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		ReviewsExtracted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seller_profile_reviews_extracted_total",
				Help: "Reviews extracted across all profiles",
			},
		),
		MissingFieldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seller_profile_missing_fields_total",
				Help: "Profile fields absent from extracted pages",
			},
			[]string{"field"},
		),
		ExtractionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seller_profile_extraction_duration_seconds",
				Help:    "Time spent parsing a profile document",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		OutboxEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seller_profile_outbox_events_total",
				Help: "Outbox events handled by the relay, by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.ExtractionsTotal,
		m.CacheLookupsTotal,
		m.ReviewsExtracted,
		m.MissingFieldsTotal,
		m.ExtractionDuration,
		m.OutboxEventsTotal,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

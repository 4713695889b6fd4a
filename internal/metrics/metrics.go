package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Upstream metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamDurationSeconds *prometheus.HistogramVec
	FallbackServedTotal     *prometheus.CounterVec

	// Locale metrics
	TranslationMissesTotal *prometheus.CounterVec
	LocaleChangesTotal     *prometheus.CounterVec

	// Live event metrics
	StreamClients     prometheus.Gauge
	StreamEventsTotal *prometheus.CounterVec
	StreamDropsTotal  prometheus.Counter

	// Import metrics
	CSVImportsTotal *prometheus.CounterVec

	// Seed metrics
	SeedSyncTotal    *prometheus.CounterVec
	SeedSyncDuration prometheus.Histogram

	// Background job metrics
	JobDurationSeconds *prometheus.HistogramVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	m := &Metrics{
		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_upstream_requests_total",
				Help: "Total number of upstream ERP requests by resource, method and outcome",
			},
			[]string{"resource", "method", "outcome"}, // outcome: success, http_error, timeout, error
		),

		UpstreamDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erp_upstream_duration_seconds",
				Help:    "Upstream ERP request duration in seconds by resource",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Capped by the 10s upstream timeout
			},
			[]string{"resource"},
		),

		FallbackServedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_fallback_served_total",
				Help: "Total number of reads answered from fallback data by resource and reason",
			},
			[]string{"resource", "reason"}, // reason: not_configured, upstream_status, upstream_error, unknown_shape
		),

		TranslationMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_translation_misses_total",
				Help: "Total number of translation keys that did not resolve to a string",
			},
			[]string{"locale"},
		),

		LocaleChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_locale_changes_total",
				Help: "Total number of locale switches by target locale",
			},
			[]string{"locale"},
		),

		StreamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "erp_stream_clients",
				Help: "Number of connected live event subscribers",
			},
		),

		StreamEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_stream_events_total",
				Help: "Total number of live events published by type",
			},
			[]string{"type"},
		),

		StreamDropsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "erp_stream_drops_total",
				Help: "Total number of live events dropped for slow subscribers",
			},
		),

		CSVImportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_csv_imports_total",
				Help: "Total number of CSV import attempts by result",
			},
			[]string{"result"}, // result: accepted, invalid, forwarded, upstream_error
		),

		SeedSyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_seed_sync_total",
				Help: "Total number of seed override syncs by resource and status",
			},
			[]string{"resource", "status"}, // status: updated, unchanged, missing, error
		),

		SeedSyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "erp_seed_sync_duration_seconds",
				Help:    "Duration of a full seed sync pass",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erp_job_duration_seconds",
				Help:    "Background job duration in seconds by job",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"job"}, // job: seed_sync, preference_cleanup
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_http_errors_total",
				Help: "Total HTTP error responses by error code and module",
			},
			[]string{"error_code", "module"},
		),
	}

	return m
}

// RecordUpstreamRequest records an upstream call with its outcome
func (m *Metrics) RecordUpstreamRequest(resource, method, outcome string, duration float64) {
	m.UpstreamRequestsTotal.WithLabelValues(resource, method, outcome).Inc()
	m.UpstreamDurationSeconds.WithLabelValues(resource).Observe(duration)
}

// RecordFallback records a read answered from fallback data
func (m *Metrics) RecordFallback(resource, reason string) {
	m.FallbackServedTotal.WithLabelValues(resource, reason).Inc()
}

// RecordTranslationMiss records an unresolved translation key
func (m *Metrics) RecordTranslationMiss(locale string) {
	m.TranslationMissesTotal.WithLabelValues(locale).Inc()
}

// RecordLocaleChange records a locale switch
func (m *Metrics) RecordLocaleChange(locale string) {
	m.LocaleChangesTotal.WithLabelValues(locale).Inc()
}

// StreamClientConnected increments the subscriber gauge
func (m *Metrics) StreamClientConnected() {
	m.StreamClients.Inc()
}

// StreamClientDisconnected decrements the subscriber gauge
func (m *Metrics) StreamClientDisconnected() {
	m.StreamClients.Dec()
}

// RecordStreamEvent records a published live event
func (m *Metrics) RecordStreamEvent(eventType string) {
	m.StreamEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordStreamDrop records events dropped for a slow subscriber
func (m *Metrics) RecordStreamDrop() {
	m.StreamDropsTotal.Inc()
}

// RecordCSVImport records a CSV import attempt
func (m *Metrics) RecordCSVImport(result string) {
	m.CSVImportsTotal.WithLabelValues(result).Inc()
}

// RecordSeedSync records the outcome for one seed object
func (m *Metrics) RecordSeedSync(resource, status string) {
	m.SeedSyncTotal.WithLabelValues(resource, status).Inc()
}

// RecordSeedSyncDuration records total seed sync duration
func (m *Metrics) RecordSeedSyncDuration(duration float64) {
	m.SeedSyncDuration.Observe(duration)
}

// RecordJob records a background job run
func (m *Metrics) RecordJob(job string, duration float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorCode, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorCode, module).Inc()
}

// RegisterLogDrops exposes records the remote log shipper discarded as
// erp_log_records_dropped_total, labelled by level band (info or warn).
func RegisterLogDrops(registry prometheus.Registerer, drops func() (low, high uint64)) {
	factory := promauto.With(registry)
	opts := func(band string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Name:        "erp_log_records_dropped_total",
			Help:        "Total number of log records dropped by the remote shipper by level band",
			ConstLabels: prometheus.Labels{"level": band},
		}
	}
	factory.NewCounterFunc(opts("info"), func() float64 {
		low, _ := drops()
		return float64(low)
	})
	factory.NewCounterFunc(opts("warn"), func() float64 {
		_, high := drops()
		return float64(high)
	})
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// environmental batch pipeline.
type Metrics struct {
	UsersProcessed prometheus.Counter
	UsersSkipped   prometheus.Counter
	UsersErrored   prometheus.Counter
	RunRunning     prometheus.Gauge

	// Batch run metrics.
	RunDuration   prometheus.Histogram
	RunsTotal     *prometheus.CounterVec // labels: outcome={completed,aborted}
	EligibleUsers prometheus.Histogram

	// External provider metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider={openmeteo,nasapower,nominatim}, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider

	// Destination store metrics.
	Upserts      *prometheus.CounterVec // labels: table
	UpsertErrors *prometheus.CounterVec // labels: table

	// Geocoding cache metrics.
	GeocodeCache *prometheus.CounterVec // labels: result={hit,miss}

	// Event publishing.
	EventsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UsersProcessed,
		m.UsersSkipped,
		m.UsersErrored,
		m.RunRunning,
		m.RunDuration,
		m.RunsTotal,
		m.EligibleUsers,
		m.ProviderRequests,
		m.ProviderDuration,
		m.Upserts,
		m.UpsertErrors,
		m.GeocodeCache,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UsersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "users_processed_total",
			Help:      "Users whose aggregates were computed and stored.",
		}),
		UsersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "users_skipped_total",
			Help:      "Users skipped because their location could not be resolved.",
		}),
		UsersErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "users_errored_total",
			Help:      "Users whose processing failed after location resolution.",
		}),
		RunRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviro_batch",
			Name:      "run_running",
			Help:      "1 while a batch run is active, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enviro_batch",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete batch run over all eligible users.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "runs_total",
			Help:      "Batch runs by outcome.",
		}, []string{"outcome"}),
		EligibleUsers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enviro_batch",
			Name:      "eligible_users",
			Help:      "Number of profiles with a location per batch run.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "provider_requests_total",
			Help:      "External API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "enviro_batch",
			Name:      "provider_request_duration_seconds",
			Help:      "External API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		Upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "upserts_total",
			Help:      "Successful row upserts by destination table.",
		}, []string{"table"}),
		UpsertErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "upsert_errors_total",
			Help:      "Failed row upserts by destination table.",
		}, []string{"table"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_batch",
			Name:      "events_published_total",
			Help:      "Aggregate-updated events published to the sink topic.",
		}),
	}
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cadastre"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// resolution service.
type Metrics struct {
	// Resolution metrics.
	Resolutions        *prometheus.CounterVec // labels: provenance={authoritative,synthesized}
	Fallbacks          *prometheus.CounterVec // labels: reason={error,empty,disabled}
	StaleDiscarded     prometheus.Counter
	ResolutionDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={search,reverse}, outcome={success,error,empty,skipped}
	GeocodeCache       *prometheus.CounterVec   // labels: method={search,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={search,reverse}

	// Parcel source metrics.
	ParcelRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	ParcelCache       *prometheus.CounterVec // labels: result={hit,miss,error}
	ParcelAPIDuration prometheus.Histogram

	// Export metrics.
	Exports          *prometheus.CounterVec // labels: outcome={success,failure,cancelled}
	ExportDuration   prometheus.Histogram
	SnapshotFailures prometheus.Counter

	// Session and event metrics.
	ActiveSessions  prometheus.Gauge
	EventsForwarded *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Applied cadastral resolutions by record provenance.",
		}, []string{"provenance"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_fallbacks_total",
			Help:      "Resolutions that fell back to synthesis, by reason.",
		}, []string{"reason"}),
		StaleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_resolutions_discarded_total",
			Help:      "Resolutions discarded because a newer coordinate superseded them.",
		}),
		ResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Duration of a complete coordinate resolution.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Address API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		ParcelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcel_requests_total",
			Help:      "Cadastre API requests by outcome.",
		}, []string{"outcome"}),
		ParcelCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcel_cache_total",
			Help:      "Parcel cache lookups by result.",
		}, []string{"result"}),
		ParcelAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parcel_api_duration_seconds",
			Help:      "Cadastre API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Cadastral extract exports by outcome.",
		}, []string{"outcome"}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Duration of snapshot capture, composition and PDF rendering.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Exports produced without a map snapshot because capture failed.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live user sessions.",
		}),
		EventsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_forwarded_total",
			Help:      "Session events forwarded to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Resolutions,
		m.Fallbacks,
		m.StaleDiscarded,
		m.ResolutionDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.ParcelRequests,
		m.ParcelCache,
		m.ParcelAPIDuration,
		m.Exports,
		m.ExportDuration,
		m.SnapshotFailures,
		m.ActiveSessions,
		m.EventsForwarded,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

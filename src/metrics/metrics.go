package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the explorer
type MetricsRegistry struct {
	Registry *prometheus.Registry

	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Dataset Metrics
	DatasetRows     *prometheus.GaugeVec
	DatasetReloads  *prometheus.CounterVec
	DatasetLoadedAt prometheus.Gauge

	// Business Metrics
	SummaryDuration prometheus.Histogram
	SummaryRoutes   prometheus.Histogram
	LookupErrors    *prometheus.CounterVec
	ReportsExported *prometheus.CounterVec
}

// NewMetricsRegistry initializes all metrics on a dedicated registry
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &MetricsRegistry{
		Registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fdx_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fdx_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fdx_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		DatasetRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fdx_dataset_rows",
				Help: "Rows in the currently loaded dataset by table",
			},
			[]string{"table"},
		),
		DatasetReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fdx_dataset_reloads_total",
				Help: "Dataset reload attempts by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		DatasetLoadedAt: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fdx_dataset_loaded_timestamp_seconds",
				Help: "Unix time the current dataset was loaded",
			},
		),

		SummaryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fdx_route_summary_duration_seconds",
				Help:    "Time spent summarizing routes for one origin",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		SummaryRoutes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fdx_route_summary_rows",
				Help:    "Number of destination rows returned per summary",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		LookupErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fdx_airport_lookup_errors_total",
				Help: "Failed airport coordinate lookups by kind",
			},
			[]string{"kind"},
		),
		ReportsExported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fdx_reports_exported_total",
				Help: "Report exports by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveDataset updates the dataset gauges after a load
func (m *MetricsRegistry) ObserveDataset(flights, airports int, loadedAtUnix float64) {
	m.DatasetRows.WithLabelValues("flights").Set(float64(flights))
	m.DatasetRows.WithLabelValues("airports").Set(float64(airports))
	m.DatasetLoadedAt.Set(loadedAtUnix)
}

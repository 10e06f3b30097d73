// Package metrics exposes the Prometheus collectors of the carlog binaries.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	analysisPasses  *prometheus.CounterVec
	tripsComputed   prometheus.Gauge
	recordsLoaded   prometheus.Gauge
	storeOperations *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	decodeIssues    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New registers every collector on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the carlog collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		analysisPasses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carlog_fuel_analysis_passes_total",
				Help: "Fuel analysis passes by resulting status",
			},
			[]string{"status"},
		),
		tripsComputed: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "carlog_fuel_trips",
				Help: "Valid trips found by the last analysis pass",
			},
		),
		recordsLoaded: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "carlog_records",
				Help: "Records in the current in-memory set",
			},
		),
		storeOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carlog_store_operations_total",
				Help: "Record store operations by store, operation and status",
			},
			[]string{"store", "op", "status"},
		),
		storeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "carlog_store_operation_duration_seconds",
				Help:    "Record store operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store", "op"},
		),
		decodeIssues: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carlog_decode_issues_total",
				Help: "Values coerced or rows dropped while decoding stored records",
			},
			[]string{"kind"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carlog_http_requests_total",
				Help: "HTTP requests by route and status code class",
			},
			[]string{"route", "code"},
		),
	}
}

func (m *Metrics) AnalysisPass(status string, trips int) {
	if m == nil {
		return
	}
	m.analysisPasses.WithLabelValues(status).Inc()
	m.tripsComputed.Set(float64(trips))
}

func (m *Metrics) Records(n int) {
	if m == nil {
		return
	}
	m.recordsLoaded.Set(float64(n))
}

// StoreOp records the outcome and latency of a Load or Save.
func (m *Metrics) StoreOp(store, op string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeOperations.WithLabelValues(store, op, status).Inc()
	m.storeDuration.WithLabelValues(store, op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) DecodeIssue(kind string) {
	if m == nil {
		return
	}
	m.decodeIssues.WithLabelValues(kind).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	class := "5xx"
	switch {
	case code < 300:
		class = "2xx"
	case code < 400:
		class = "3xx"
	case code < 500:
		class = "4xx"
	}
	m.httpRequests.WithLabelValues(route, class).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

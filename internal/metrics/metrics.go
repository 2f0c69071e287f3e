// Package metrics exposes Prometheus collectors for the HTTP layer, location
// ingest, the realtime hub and retention cleanup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "bus_tracker"

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	locationsIngested prometheus.Counter
	ingestFailures    *prometheus.CounterVec
	wsClients         prometheus.Gauge
	retentionDeleted  prometheus.Counter
	retentionRuns     *prometheus.CounterVec
}

// New creates the collectors and registers them, with the Go and process
// collectors, on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		locationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_ingested_total",
			Help:      "GPS pings stored.",
		}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_ingest_failures_total",
			Help:      "Rejected or failed location updates by error kind.",
		}, []string{"kind"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live-location subscribers.",
		}),
		retentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_locations_total",
			Help:      "Pings removed by retention cleanup.",
		}),
		retentionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_runs_total",
			Help:      "Retention cleanup runs by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.locationsIngested,
		m.ingestFailures,
		m.wsClients,
		m.retentionDeleted,
		m.retentionRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) LocationIngested() {
	if m == nil {
		return
	}
	m.locationsIngested.Inc()
}

func (m *Metrics) IngestFailed(kind string) {
	if m == nil {
		return
	}
	m.ingestFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}

func (m *Metrics) RetentionRun(deleted int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.retentionRuns.WithLabelValues("error").Inc()
		return
	}
	m.retentionRuns.WithLabelValues("ok").Inc()
	m.retentionDeleted.Add(float64(deleted))
}

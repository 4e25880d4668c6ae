// Package metrics provides Prometheus metrics for fetching, extraction and merging.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all crisislog metrics.
	Namespace = "crisislog"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so components can take one optionally.
type Metrics struct {
	DocumentsFetched   *prometheus.CounterVec
	DocumentsFailed    *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	CacheHits          prometheus.Counter
	IncidentsExtracted *prometheus.CounterVec
	IncidentsMerged    prometheus.Counter
	JobsRunning        prometheus.Gauge
}

// New creates and registers all metrics on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		DocumentsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "documents_total",
			Help:      "Documents fetched successfully",
		}, []string{"host"}),
		DocumentsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "failures_total",
			Help:      "Documents that could not be fetched, by failure kind",
		}, []string{"kind"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Time spent fetching one document, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "cache_hits_total",
			Help:      "Documents served from the page cache",
		}),
		IncidentsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "extract",
			Name:      "incidents_total",
			Help:      "Incidents assembled, by type",
		}, []string{"type"}),
		IncidentsMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "merge",
			Name:      "incidents_added_total",
			Help:      "Incidents newly added to the collection",
		}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Extraction jobs currently running",
		}),
	}
}

// ObserveFetch records one successful fetch
func (m *Metrics) ObserveFetch(host string, d time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsFetched.WithLabelValues(host).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveFetchFailure records one failed fetch
func (m *Metrics) ObserveFetchFailure(kind string) {
	if m == nil {
		return
	}
	m.DocumentsFailed.WithLabelValues(kind).Inc()
}

// ObserveCacheHit records a page served from cache
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObserveIncident records one assembled incident
func (m *Metrics) ObserveIncident(incidentType string) {
	if m == nil {
		return
	}
	m.IncidentsExtracted.WithLabelValues(incidentType).Inc()
}

// ObserveMerged records incidents added by a merge
func (m *Metrics) ObserveMerged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IncidentsMerged.Add(float64(n))
}

// JobStarted marks an extraction job as running
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsRunning.Inc()
}

// JobFinished marks a running job as done
func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.JobsRunning.Dec()
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFetch("www.aljazeera.com", 250*time.Millisecond)
	m.ObserveFetch("www.aljazeera.com", time.Second)
	m.ObserveFetchFailure("timeout")
	m.ObserveCacheHit()
	m.ObserveIncident("hunger")
	m.ObserveMerged(3)
	m.ObserveMerged(0)
	m.JobStarted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocumentsFetched.WithLabelValues("www.aljazeera.com")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsFailed.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IncidentsExtracted.WithLabelValues("hunger")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IncidentsMerged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsRunning))

	m.JobFinished()
	assert.Zero(t, testutil.ToFloat64(m.JobsRunning))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("x", time.Second)
		m.ObserveFetchFailure("http")
		m.ObserveCacheHit()
		m.ObserveIncident("aid")
		m.ObserveMerged(1)
		m.JobStarted()
		m.JobFinished()
	})
}

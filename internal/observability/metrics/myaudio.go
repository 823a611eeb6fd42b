package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MyAudioMetrics contains Prometheus metrics for audio segment loading
// and the segment cache.
type MyAudioMetrics struct {
	registry *prometheus.Registry

	segmentReadsTotal   *prometheus.CounterVec
	segmentReadDuration *prometheus.HistogramVec

	cacheOperationsTotal *prometheus.CounterVec
	cacheEntriesGauge    prometheus.Gauge

	collectors []prometheus.Collector
}

// NewMyAudioMetrics creates and registers audio metrics.
func NewMyAudioMetrics(registry *prometheus.Registry) (*MyAudioMetrics, error) {
	m := &MyAudioMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register myaudio metrics: %w", err)
	}
	return m, nil
}

func (m *MyAudioMetrics) initMetrics() {
	m.segmentReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myaudio_segment_reads_total",
			Help: "Total number of audio segment reads",
		},
		[]string{"format", "status"},
	)

	m.segmentReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "myaudio_segment_read_duration_seconds",
			Help:    "Time taken to decode audio segments from disk",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"format"},
	)

	m.cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myaudio_segment_cache_operations_total",
			Help: "Segment cache operations by result (hit, miss, store)",
		},
		[]string{"operation", "result"},
	)

	m.cacheEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "myaudio_segment_cache_entries",
		Help: "Number of segments currently cached",
	})

	m.collectors = []prometheus.Collector{
		m.segmentReadsTotal,
		m.segmentReadDuration,
		m.cacheOperationsTotal,
		m.cacheEntriesGauge,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *MyAudioMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *MyAudioMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordSegmentRead records one segment decode attempt.
func (m *MyAudioMetrics) RecordSegmentRead(format, status string) {
	m.segmentReadsTotal.WithLabelValues(format, status).Inc()
}

// RecordSegmentReadDuration records how long a segment decode took.
func (m *MyAudioMetrics) RecordSegmentReadDuration(format string, seconds float64) {
	m.segmentReadDuration.WithLabelValues(format).Observe(seconds)
}

// RecordCacheOperation records a segment cache lookup or store.
func (m *MyAudioMetrics) RecordCacheOperation(operation, result string) {
	m.cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// UpdateCacheEntries sets the current cache entry count.
func (m *MyAudioMetrics) UpdateCacheEntries(entries int) {
	m.cacheEntriesGauge.Set(float64(entries))
}

package metrics

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

// LocalizationMetrics contains Prometheus metrics for the localization
// pipeline: runs, per-event outcomes and solution quality.
type LocalizationMetrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram

	eventsTotal       *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	receiversPerEvent prometheus.Histogram

	residualRMS *prometheus.HistogramVec
	ccMax       *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewLocalizationMetrics creates and registers localization metrics.
func NewLocalizationMetrics(registry *prometheus.Registry) (*LocalizationMetrics, error) {
	m := &LocalizationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register localization metrics: %w", err)
	}
	return m, nil
}

func (m *LocalizationMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localization_runs_total",
			Help: "Total number of localization runs",
		},
		[]string{"status"},
	)

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "localization_run_duration_seconds",
		Help:    "Wall-clock duration of whole localization runs",
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12),
	})

	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localization_events_total",
			Help: "Candidate events by terminal pipeline state",
		},
		[]string{"state"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localization_stage_duration_seconds",
			Help:    "Per-event time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"stage"},
	)

	m.receiversPerEvent = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "localization_receivers_per_event",
		Help:    "Number of receivers grouped into each candidate event",
		Buckets: prometheus.LinearBuckets(2, 1, 15),
	})

	m.residualRMS = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localization_residual_rms_meters",
			Help:    "Residual RMS of solved positions in meters",
			Buckets: prometheus.ExponentialBuckets(BucketStart1cm, BucketFactor2, BucketCount15),
		},
		[]string{"algorithm"},
	)

	m.ccMax = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localization_cc_max",
			Help:    "Peak cross-correlation confidence per receiver pair",
			Buckets: prometheus.LinearBuckets(0, 0.05, 21),
		},
		[]string{"filter"},
	)

	m.collectors = []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.eventsTotal,
		m.stageDuration,
		m.receiversPerEvent,
		m.residualRMS,
		m.ccMax,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *LocalizationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *LocalizationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRun records a completed localization run (success, error).
func (m *LocalizationMetrics) RecordRun(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

// RecordRunDuration records the wall-clock duration of a run.
func (m *LocalizationMetrics) RecordRunDuration(seconds float64) {
	m.runDuration.Observe(seconds)
}

// RecordEvent records a candidate event reaching a terminal state.
func (m *LocalizationMetrics) RecordEvent(state string) {
	m.eventsTotal.WithLabelValues(state).Inc()
}

// RecordStageDuration records per-event time in a pipeline stage.
func (m *LocalizationMetrics) RecordStageDuration(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordEventReceivers records how many receivers an event grouped.
func (m *LocalizationMetrics) RecordEventReceivers(count int) {
	m.receiversPerEvent.Observe(float64(count))
}

// RecordResidualRMS records the residual RMS of a solved position.
// Degenerate solves produce NaN, which has no meaningful bucket.
func (m *LocalizationMetrics) RecordResidualRMS(algorithm string, meters float64) {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return
	}
	m.residualRMS.WithLabelValues(algorithm).Observe(meters)
}

// RecordCCMax records a receiver pair's correlation confidence.
func (m *LocalizationMetrics) RecordCCMax(filter string, value float64) {
	m.ccMax.WithLabelValues(filter).Observe(value)
}

package localization

import (
	"sync/atomic"

	"github.com/tphakala/birdnet-array/internal/observability/metrics"
)

var pipelineMetrics atomic.Pointer[metrics.LocalizationMetrics]

// SetMetrics wires the pipeline metrics collector. Nil disables recording.
func SetMetrics(m *metrics.LocalizationMetrics) {
	pipelineMetrics.Store(m)
}

func getMetrics() *metrics.LocalizationMetrics {
	return pipelineMetrics.Load()
}

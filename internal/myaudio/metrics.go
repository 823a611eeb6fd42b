package myaudio

import (
	"sync/atomic"

	"github.com/tphakala/birdnet-array/internal/observability/metrics"
)

var myAudioMetrics atomic.Pointer[metrics.MyAudioMetrics]

// SetMetrics wires the audio metrics collector. Nil disables recording.
func SetMetrics(m *metrics.MyAudioMetrics) {
	myAudioMetrics.Store(m)
}

func getMetrics() *metrics.MyAudioMetrics {
	return myAudioMetrics.Load()
}

// Package observability provides metrics and monitoring capabilities for
// the application.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/birdnet-array/internal/localization"
	"github.com/tphakala/birdnet-array/internal/myaudio"
	"github.com/tphakala/birdnet-array/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Localization *metrics.LocalizationMetrics
	MyAudio      *metrics.MyAudioMetrics
	Datastore    *metrics.DatastoreMetrics
	MQTT         *metrics.MQTTMetrics
	HTTP         *metrics.HTTPMetrics
}

// NewMetrics creates all metric collectors on a fresh registry and wires
// them into the packages that record through package-level hooks. The
// datastore takes its collector per store instance instead.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	localizationMetrics, err := metrics.NewLocalizationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create localization metrics: %w", err)
	}

	myAudioMetrics, err := metrics.NewMyAudioMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create myaudio metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	m := &Metrics{
		registry:     registry,
		Localization: localizationMetrics,
		MyAudio:      myAudioMetrics,
		Datastore:    datastoreMetrics,
		MQTT:         mqttMetrics,
		HTTP:         httpMetrics,
	}

	localization.SetMetrics(localizationMetrics)
	myaudio.SetMetrics(myAudioMetrics)

	return m, nil
}

// Registry exposes the underlying registry for custom gather paths.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterHandlers registers the metrics endpoint on a plain ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

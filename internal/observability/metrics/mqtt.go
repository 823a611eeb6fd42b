package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MQTTMetrics contains Prometheus metrics for the MQTT publisher.
type MQTTMetrics struct {
	registry *prometheus.Registry

	connectionStatus  prometheus.Gauge
	lastConnectTime   prometheus.Gauge
	messagesDelivered prometheus.Counter
	errorsTotal       prometheus.Counter
	reconnectAttempts prometheus.Counter
	messageSize       prometheus.Histogram
	publishLatency    prometheus.Histogram

	collectors []prometheus.Collector
}

// NewMQTTMetrics creates and registers MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() {
	m.connectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_connection_status",
		Help: "Current MQTT connection status (1 connected, 0 disconnected)",
	})

	m.lastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_last_connect_time_seconds",
		Help: "Timestamp of the last successful MQTT connection",
	})

	m.messagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_messages_delivered_total",
		Help: "Total number of MQTT messages successfully delivered",
	})

	m.errorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_errors_total",
		Help: "Total number of MQTT errors encountered",
	})

	m.reconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_reconnect_attempts_total",
		Help: "Total number of MQTT reconnection attempts",
	})

	m.messageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqtt_message_size_bytes",
		Help:    "Size of published MQTT messages in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})

	m.publishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	m.collectors = []prometheus.Collector{
		m.connectionStatus,
		m.lastConnectTime,
		m.messagesDelivered,
		m.errorsTotal,
		m.reconnectAttempts,
		m.messageSize,
		m.publishLatency,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// UpdateConnectionStatus records connection state changes, stamping the
// connect time on success.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.connectionStatus.Set(1)
		m.lastConnectTime.SetToCurrentTime()
	} else {
		m.connectionStatus.Set(0)
	}
}

// ConnectionStatus reads back the current connection gauge: 1 connected,
// 0 disconnected or unreadable.
func (m *MQTTMetrics) ConnectionStatus() float64 {
	metric := &dto.Metric{}
	if err := m.connectionStatus.Write(metric); err != nil {
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}

// IncrementMessagesDelivered counts a successfully delivered message.
func (m *MQTTMetrics) IncrementMessagesDelivered() {
	m.messagesDelivered.Inc()
}

// IncrementErrors counts an MQTT error.
func (m *MQTTMetrics) IncrementErrors() {
	m.errorsTotal.Inc()
}

// IncrementReconnectAttempts counts a reconnection attempt.
func (m *MQTTMetrics) IncrementReconnectAttempts() {
	m.reconnectAttempts.Inc()
}

// ObserveMessageSize records the size of a published message.
func (m *MQTTMetrics) ObserveMessageSize(sizeBytes float64) {
	m.messageSize.Observe(sizeBytes)
}

// ObservePublishLatency records the latency of a publish operation.
func (m *MQTTMetrics) ObservePublishLatency(latencySeconds float64) {
	m.publishLatency.Observe(latencySeconds)
}

// StartPublishTimer returns a timer whose ObserveDuration records the
// publish latency.
func (m *MQTTMetrics) StartPublishTimer() *PublishTimer {
	return &PublishTimer{startTime: time.Now(), metrics: m}
}

// PublishTimer measures one publish operation.
type PublishTimer struct {
	startTime time.Time
	metrics   *MQTTMetrics
}

// ObserveDuration stops the timer and records the elapsed latency.
func (pt *PublishTimer) ObserveDuration() {
	pt.metrics.ObservePublishLatency(time.Since(pt.startTime).Seconds())
}

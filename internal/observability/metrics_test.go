package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	// Vec collectors surface in Gather only after a first observation.
	m.Localization.RecordRun("success")
	m.Localization.RecordEvent("localized")
	m.MyAudio.RecordSegmentRead("wav", "success")
	m.Datastore.RecordDbOperation("insert", "runs", "success")
	m.HTTP.RecordRequest("GET", "/api/v1/runs", "200")
	m.MQTT.IncrementMessagesDelivered()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var names []string
	for _, family := range families {
		names = append(names, family.GetName())
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{
		"localization_runs_total",
		"localization_events_total",
		"myaudio_segment_reads_total",
		"datastore_db_operations_total",
		"http_requests_total",
		"mqtt_messages_delivered_total",
		"mqtt_connection_status",
	} {
		assert.Contains(t, joined, want, "expected metric family %s", want)
	}
}

func TestMetricsHandlerServesPrometheusText(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Localization.RecordRun("success")

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "localization_runs_total")
}

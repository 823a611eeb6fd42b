// api_test.go: tests for controller wiring, health and error handling.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-array/internal/errors"
)

func TestHealthCheck(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	mockDS.On("CountRuns").Return(int64(3), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/healthz")

	require.NoError(t, controller.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "test", response["version"])
	assert.Equal(t, "connected", response["database_status"])
	assert.NotEmpty(t, response["uptime"])

	mockDS.AssertExpectations(t)
}

func TestHealthCheckDegradedOnDatabaseError(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	mockDS.On("CountRuns").Return(int64(0), errors.NewStd("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, controller.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "degraded", response["status"])
	assert.Equal(t, "disconnected", response["database_status"])
	assert.Contains(t, response["database_error"], "connection refused")
}

func TestHandleError(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := controller.HandleError(c, echo.NewHTTPError(http.StatusBadRequest, "test error"),
		"Error message", http.StatusBadRequest)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Error message", response.Message)
	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Len(t, response.CorrelationID, 8, "correlation ID should be generated")
}

func TestConfigFromSettingsDefaults(t *testing.T) {
	settings := testSettings()
	settings.WebServer.Port = ""

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "8090", cfg.Port, "empty port should fall back to the default")
	assert.Equal(t, ":8090", cfg.Address())
	require.NoError(t, cfg.Validate())

	cfg.Port = ""
	require.Error(t, cfg.Validate())
}

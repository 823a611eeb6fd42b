// test_utils.go: shared mock datastore and environment setup for API tests.
package api

import (
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/observability"
)

// MockDataStore implements datastore.Interface for testing, shared across
// all test files in this package.
type MockDataStore struct {
	mock.Mock
}

func (m *MockDataStore) Open() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDataStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDataStore) SetMetrics(metrics *datastore.Metrics) {
	m.Called(metrics)
}

func (m *MockDataStore) SaveRun(run *datastore.Run, events []datastore.LocalizedEvent) error {
	args := m.Called(run, events)
	return args.Error(0)
}

func (m *MockDataStore) GetRun(id string) (datastore.Run, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.Run), args.Error(1)
}

func (m *MockDataStore) GetAllRuns(limit, offset int) ([]datastore.Run, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Run), args.Error(1)
}

func (m *MockDataStore) CountRuns() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataStore) GetRunEvents(runID, class string, limit, offset int) ([]datastore.LocalizedEvent, error) {
	args := m.Called(runID, class, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.LocalizedEvent), args.Error(1)
}

func (m *MockDataStore) CountRunEvents(runID, class string) (int64, error) {
	args := m.Called(runID, class)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataStore) GetEvent(id string) (datastore.LocalizedEvent, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.LocalizedEvent), args.Error(1)
}

// testSettings returns settings with the web server enabled.
func testSettings() *conf.Settings {
	settings := &conf.Settings{
		Version: "test",
	}
	settings.WebServer.Enabled = true
	settings.WebServer.Port = "8090"
	return settings
}

// setupTestEnvironment creates an echo instance, mock datastore and
// controller wired together for handler tests.
func setupTestEnvironment(t *testing.T) (*echo.Echo, *MockDataStore, *Controller) {
	t.Helper()

	e := echo.New()
	mockDS := new(MockDataStore)

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	controller, err := NewController(e, mockDS, testSettings(), metrics)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)

	return e, mockDS, controller
}

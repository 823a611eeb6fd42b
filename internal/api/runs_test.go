// runs_test.go: tests for the run and event endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/errors"
)

func testStoredRun(id uint, uuid string) datastore.Run {
	return datastore.Run{
		ID:             id,
		UUID:           uuid,
		StartedAt:      time.Date(2025, 6, 1, 4, 30, 0, 0, time.UTC),
		FinishedAt:     time.Date(2025, 6, 1, 4, 31, 12, 0, time.UTC),
		Algorithm:      "gillette",
		CCFilter:       "phat",
		SpeedOfSound:   343.0,
		EventCount:     5,
		LocalizedCount: 4,
		RejectedCount:  1,
	}
}

func testStoredEvent(id uint, class string) datastore.LocalizedEvent {
	return datastore.LocalizedEvent{
		ID:            id,
		UUID:          "event-uuid",
		RunID:         1,
		Class:         class,
		Start:         12.5,
		Duration:      0.8,
		ReferenceFile: "recorder_a.wav",
		ReceiverCount: 4,
		X:             5.25,
		Y:             -3.5,
		Z:             1.0,
		ResidualRMS:   0.042,
		MeanCCMax:     0.87,
		SolarPhase:    "dawn",
	}
}

func TestGetRuns(t *testing.T) {
	storedRuns := []datastore.Run{
		testStoredRun(2, "run-two"),
		testStoredRun(1, "run-one"),
	}

	testCases := []struct {
		name           string
		queryParams    map[string]string
		mockSetup      func(*mock.Mock)
		expectedStatus int
		checkResponse  func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "default pagination",
			queryParams: map[string]string{},
			mockSetup: func(m *mock.Mock) {
				m.On("GetAllRuns", 100, 0).Return(storedRuns, nil)
				m.On("CountRuns").Return(int64(2), nil)
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				t.Helper()
				var response PaginatedResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				assert.Equal(t, int64(2), response.Total)
				assert.Equal(t, 100, response.Limit)
				assert.Equal(t, 1, response.CurrentPage)
				assert.Equal(t, 1, response.TotalPages)
				data, ok := response.Data.([]any)
				require.True(t, ok)
				require.Len(t, data, 2)
				first, ok := data[0].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "run-two", first["uuid"], "newest run should come first")
				assert.Equal(t, "gillette", first["algorithm"])
			},
		},
		{
			name:        "explicit limit and offset",
			queryParams: map[string]string{"limit": "1", "offset": "1"},
			mockSetup: func(m *mock.Mock) {
				m.On("GetAllRuns", 1, 1).Return(storedRuns[1:], nil)
				m.On("CountRuns").Return(int64(2), nil)
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				t.Helper()
				var response PaginatedResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				assert.Equal(t, 2, response.CurrentPage)
				assert.Equal(t, 2, response.TotalPages)
			},
		},
		{
			name:        "limit capped at maximum",
			queryParams: map[string]string{"limit": "5000"},
			mockSetup: func(m *mock.Mock) {
				m.On("GetAllRuns", 1000, 0).Return([]datastore.Run{}, nil)
				m.On("CountRuns").Return(int64(0), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "datastore failure",
			queryParams: map[string]string{},
			mockSetup: func(m *mock.Mock) {
				m.On("GetAllRuns", 100, 0).Return(nil, errors.NewStd("database gone"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, mockDS, controller := setupTestEnvironment(t)
			tc.mockSetup(&mockDS.Mock)

			q := make(url.Values)
			for k, v := range tc.queryParams {
				q.Set(k, v)
			}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?"+q.Encode(), http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetPath("/api/v1/runs")

			require.NoError(t, controller.GetRuns(c))
			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}
			mockDS.AssertExpectations(t)
		})
	}
}

func TestGetRun(t *testing.T) {
	testCases := []struct {
		name           string
		id             string
		mockSetup      func(*mock.Mock)
		expectedStatus int
	}{
		{
			name: "found",
			id:   "1",
			mockSetup: func(m *mock.Mock) {
				m.On("GetRun", "1").Return(testStoredRun(1, "run-one"), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found",
			id:   "404",
			mockSetup: func(m *mock.Mock) {
				m.On("GetRun", "404").Return(datastore.Run{}, gorm.ErrRecordNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid id",
			id:             "not-a-number",
			mockSetup:      func(m *mock.Mock) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, mockDS, controller := setupTestEnvironment(t)
			tc.mockSetup(&mockDS.Mock)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+tc.id, http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetPath("/api/v1/runs/:id")
			c.SetParamNames("id")
			c.SetParamValues(tc.id)

			require.NoError(t, controller.GetRun(c))
			assert.Equal(t, tc.expectedStatus, rec.Code)

			if tc.expectedStatus == http.StatusOK {
				var response RunResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				assert.Equal(t, "run-one", response.UUID)
			}
			mockDS.AssertExpectations(t)
		})
	}
}

func TestGetRunEvents(t *testing.T) {
	storedEvents := []datastore.LocalizedEvent{
		testStoredEvent(1, "gryllus"),
		testStoredEvent(2, "gryllus"),
	}

	testCases := []struct {
		name           string
		id             string
		queryParams    map[string]string
		mockSetup      func(*mock.Mock)
		expectedStatus int
		expectedCount  int
	}{
		{
			name:        "all events",
			id:          "1",
			queryParams: map[string]string{},
			mockSetup: func(m *mock.Mock) {
				m.On("GetRun", "1").Return(testStoredRun(1, "run-one"), nil)
				m.On("GetRunEvents", "1", "", 100, 0).Return(storedEvents, nil)
				m.On("CountRunEvents", "1", "").Return(int64(2), nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:        "class filter",
			id:          "1",
			queryParams: map[string]string{"class": "gryllus", "limit": "10"},
			mockSetup: func(m *mock.Mock) {
				m.On("GetRun", "1").Return(testStoredRun(1, "run-one"), nil)
				m.On("GetRunEvents", "1", "gryllus", 10, 0).Return(storedEvents, nil)
				m.On("CountRunEvents", "1", "gryllus").Return(int64(2), nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:        "run not found",
			id:          "404",
			queryParams: map[string]string{},
			mockSetup: func(m *mock.Mock) {
				m.On("GetRun", "404").Return(datastore.Run{}, gorm.ErrRecordNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid id",
			id:             "abc",
			queryParams:    map[string]string{},
			mockSetup:      func(m *mock.Mock) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, mockDS, controller := setupTestEnvironment(t)
			tc.mockSetup(&mockDS.Mock)

			q := make(url.Values)
			for k, v := range tc.queryParams {
				q.Set(k, v)
			}
			req := httptest.NewRequest(http.MethodGet,
				"/api/v1/runs/"+tc.id+"/events?"+q.Encode(), http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetPath("/api/v1/runs/:id/events")
			c.SetParamNames("id")
			c.SetParamValues(tc.id)

			require.NoError(t, controller.GetRunEvents(c))
			assert.Equal(t, tc.expectedStatus, rec.Code)

			if tc.expectedStatus == http.StatusOK {
				var response PaginatedResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				data, ok := response.Data.([]any)
				require.True(t, ok)
				assert.Len(t, data, tc.expectedCount)
			}
			mockDS.AssertExpectations(t)
		})
	}
}

func TestGetEvent(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	event := testStoredEvent(7, "tettigonia")
	mockDS.On("GetEvent", "7").Return(event, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/7", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/events/:id")
	c.SetParamNames("id")
	c.SetParamValues("7")

	require.NoError(t, controller.GetEvent(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "tettigonia", response.Class)
	assert.InDelta(t, 5.25, response.X, 1e-9)
	assert.InDelta(t, 0.042, response.ResidualRMS, 1e-9)
	assert.Equal(t, "dawn", response.SolarPhase)

	mockDS.AssertExpectations(t)
}

func TestGetEventNotFound(t *testing.T) {
	e, mockDS, controller := setupTestEnvironment(t)

	mockDS.On("GetEvent", "99").Return(datastore.LocalizedEvent{}, gorm.ErrRecordNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/99", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/events/:id")
	c.SetParamNames("id")
	c.SetParamValues("99")

	require.NoError(t, controller.GetEvent(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Event not found", response.Message)
	assert.Equal(t, http.StatusNotFound, response.Code)
}

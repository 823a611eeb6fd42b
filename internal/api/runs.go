// runs.go: read-only endpoints for localization runs and their events.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/errors"
)

// initRunRoutes registers the run and event endpoints.
func (c *Controller) initRunRoutes() {
	c.Group.GET("/runs", c.GetRuns)
	c.Group.GET("/runs/:id", c.GetRun)
	c.Group.GET("/runs/:id/events", c.GetRunEvents)
	c.Group.GET("/events/:id", c.GetEvent)
}

// RunResponse represents a localization run in the API response.
type RunResponse struct {
	ID                uint      `json:"id"`
	UUID              string    `json:"uuid"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	DetectionsFile    string    `json:"detections_file"`
	ReceiversFile     string    `json:"receivers_file"`
	ReceiverCount     int       `json:"receiver_count"`
	Algorithm         string    `json:"algorithm"`
	CCFilter          string    `json:"cc_filter"`
	SpeedOfSound      float64   `json:"speed_of_sound"`
	MaxReceiverDist   float64   `json:"max_receiver_dist"`
	MinReceivers      int       `json:"min_receivers"`
	CCThreshold       float64   `json:"cc_threshold"`
	MaxDelay          float64   `json:"max_delay"`
	ResidualThreshold float64   `json:"residual_threshold"`
	Workers           int       `json:"workers"`
	EventCount        int       `json:"event_count"`
	LocalizedCount    int       `json:"localized_count"`
	RejectedCount     int       `json:"rejected_count"`
}

// EventResponse represents a localized event in the API response.
type EventResponse struct {
	ID            uint      `json:"id"`
	UUID          string    `json:"uuid"`
	RunID         uint      `json:"run_id"`
	Class         string    `json:"class"`
	Start         float64   `json:"start"`
	Duration      float64   `json:"duration"`
	ReferenceFile string    `json:"reference_file"`
	ReceiverCount int       `json:"receiver_count"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Z             float64   `json:"z"`
	ResidualRMS   float64   `json:"residual_rms"`
	MeanCCMax     float64   `json:"mean_cc_max"`
	SolarPhase    string    `json:"solar_phase,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaginatedResponse represents a paginated API response.
type PaginatedResponse struct {
	Data        any   `json:"data"`
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
}

func newPaginatedResponse(data any, total int64, limit, offset int) PaginatedResponse {
	return PaginatedResponse{
		Data:        data,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		CurrentPage: (offset / limit) + 1,
		TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
	}
}

// parsePagination reads limit and offset query parameters, applying the
// default and maximum page sizes.
func parsePagination(ctx echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	offset, _ = strconv.Atoi(ctx.QueryParam("offset"))

	switch {
	case limit <= 0:
		limit = 100
	case limit > 1000:
		// Cap the page size to prevent excessive loads.
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func runToResponse(run *datastore.Run) RunResponse {
	return RunResponse{
		ID:                run.ID,
		UUID:              run.UUID,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
		DetectionsFile:    run.DetectionsFile,
		ReceiversFile:     run.ReceiversFile,
		ReceiverCount:     run.ReceiverCount,
		Algorithm:         run.Algorithm,
		CCFilter:          run.CCFilter,
		SpeedOfSound:      run.SpeedOfSound,
		MaxReceiverDist:   run.MaxReceiverDist,
		MinReceivers:      run.MinReceivers,
		CCThreshold:       run.CCThreshold,
		MaxDelay:          run.MaxDelay,
		ResidualThreshold: run.ResidualThreshold,
		Workers:           run.Workers,
		EventCount:        run.EventCount,
		LocalizedCount:    run.LocalizedCount,
		RejectedCount:     run.RejectedCount,
	}
}

func eventToResponse(event *datastore.LocalizedEvent) EventResponse {
	return EventResponse{
		ID:            event.ID,
		UUID:          event.UUID,
		RunID:         event.RunID,
		Class:         event.Class,
		Start:         event.Start,
		Duration:      event.Duration,
		ReferenceFile: event.ReferenceFile,
		ReceiverCount: event.ReceiverCount,
		X:             event.X,
		Y:             event.Y,
		Z:             event.Z,
		ResidualRMS:   event.ResidualRMS,
		MeanCCMax:     event.MeanCCMax,
		SolarPhase:    event.SolarPhase,
		CreatedAt:     event.CreatedAt,
	}
}

// GetRuns handles GET requests for localization runs, newest first.
func (c *Controller) GetRuns(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)

	runs, err := c.DS.GetAllRuns(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get runs", http.StatusInternalServerError)
	}

	total, err := c.DS.CountRuns()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to count runs", http.StatusInternalServerError)
	}

	responses := make([]RunResponse, 0, len(runs))
	for i := range runs {
		responses = append(responses, runToResponse(&runs[i]))
	}

	return ctx.JSON(http.StatusOK, newPaginatedResponse(responses, total, limit, offset))
}

// GetRun returns a single run by ID.
func (c *Controller) GetRun(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := strconv.ParseUint(id, 10, 32); err != nil {
		return c.HandleError(ctx, err, "Invalid run ID", http.StatusBadRequest)
	}

	run, err := c.DS.GetRun(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Run not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get run", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, runToResponse(&run))
}

// GetRunEvents returns the localized events of a run in emission order,
// optionally filtered by class.
func (c *Controller) GetRunEvents(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := strconv.ParseUint(id, 10, 32); err != nil {
		return c.HandleError(ctx, err, "Invalid run ID", http.StatusBadRequest)
	}

	// Distinguish a missing run from a run with no events.
	if _, err := c.DS.GetRun(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Run not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get run", http.StatusInternalServerError)
	}

	class := ctx.QueryParam("class")
	limit, offset := parsePagination(ctx)

	events, err := c.DS.GetRunEvents(id, class, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get run events", http.StatusInternalServerError)
	}

	total, err := c.DS.CountRunEvents(id, class)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to count run events", http.StatusInternalServerError)
	}

	responses := make([]EventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, eventToResponse(&events[i]))
	}

	return ctx.JSON(http.StatusOK, newPaginatedResponse(responses, total, limit, offset))
}

// GetEvent returns a single localized event by ID.
func (c *Controller) GetEvent(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := strconv.ParseUint(id, 10, 32); err != nil {
		return c.HandleError(ctx, err, "Invalid event ID", http.StatusBadRequest)
	}

	event, err := c.DS.GetEvent(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Event not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get event", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, eventToResponse(&event))
}

// api.go: controller wiring, middleware and the endpoints shared by all routes.
package api

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/logging"
	"github.com/tphakala/birdnet-array/internal/observability"
)

// Controller registers the result routes and owns their handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	metrics        *observability.Metrics
	apiLogger      *slog.Logger
	apiLoggerClose func() error
	startTime      time.Time
}

// NewController creates the API controller and registers all routes on e.
func NewController(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	metrics *observability.Metrics) (*Controller, error) {

	if ds == nil {
		return nil, fmt.Errorf("datastore is required")
	}

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		metrics:   metrics,
		startTime: time.Now(),
	}

	// Structured logger for API requests, one file per service.
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", level)
	if err != nil {
		// Fall back to a disabled logger rather than failing the server.
		handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: level})
		c.apiLogger = slog.New(handler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())
	c.Group.Use(c.MetricsMiddleware())

	c.initRoutes()

	return c, nil
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Echo.GET("/healthz", c.HealthCheck)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
	c.initRunRoutes()
}

// LoggingMiddleware logs API requests to the structured logger.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API request", attrs...)

			return err
		}
	}
}

// MetricsMiddleware records request counts, latency and response size. The
// route pattern, not the raw URL, keys the labels to bound cardinality.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil || c.metrics.HTTP == nil {
				return next(ctx)
			}

			start := time.Now()
			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			path := ctx.Path()
			if path == "" {
				path = req.URL.Path
			}

			status := res.Status
			var httpErr *echo.HTTPError
			if err != nil && errors.As(err, &httpErr) {
				status = httpErr.Code
			}

			c.metrics.HTTP.RecordRequest(req.Method, path, strconv.Itoa(status))
			c.metrics.HTTP.RecordRequestDuration(req.Method, path, time.Since(start).Seconds())
			c.metrics.HTTP.RecordResponseSize(req.Method, path, res.Size)

			return err
		}
	}
}

// HealthCheck reports service and database health.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"version":   c.Settings.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	// A cheap query doubles as the connectivity probe.
	dbStatus := "connected"
	if _, err := c.DS.CountRuns(); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing API log file: %v\n", err)
		}
	}
}

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := generateCorrelationID()

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}
		c.apiLogger.Error("API error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

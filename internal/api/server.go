// server.go: echo server lifecycle around the controller.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/logging"
	"github.com/tphakala/birdnet-array/internal/observability"
)

// Server is the read-only HTTP server for localization results. It manages
// the echo instance, middleware and route registration.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	slogger  *slog.Logger

	dataStore datastore.Interface
	metrics   *observability.Metrics

	controller *Controller

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time

	logCloser func() error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDataStore sets the datastore for the server.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:    config,
		settings:  settings,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.dataStore == nil {
		cancel()
		return nil, fmt.Errorf("datastore is required")
	}

	s.initLogger()

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	// Recovery and compression apply to every route, the API group adds
	// its own logging and metrics middleware.
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.Gzip())

	controller, err := NewController(s.echo, s.dataStore, s.settings, s.metrics)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize API controller: %w", err)
	}
	s.controller = controller

	s.slogger.Info("HTTP server initialized",
		"address", config.Address(),
		"debug", config.Debug,
	)

	return s, nil
}

// initLogger initializes the structured logger for the server.
func (s *Server) initLogger() {
	logger, closer, err := logging.NewFileLogger(DefaultLogPath, "server", s.config.LogLevel)
	if err != nil {
		handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: s.config.LogLevel})
		s.slogger = slog.New(handler).With("service", "server")
		s.logCloser = func() error { return nil }
		return
	}
	s.slogger = logger
	s.logCloser = closer
}

// Start begins serving HTTP requests in a background goroutine. Use
// Shutdown to stop the server.
func (s *Server) Start() {
	go func() {
		if err := s.startBlocking(); err != nil {
			s.slogger.Error("server error", "error", err)
		}
	}()
}

// startBlocking begins serving HTTP requests and blocks until shutdown.
func (s *Server) startBlocking() error {
	addr := s.config.Address()
	s.slogger.Info("starting HTTP server", "address", addr)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) StartWithGracefulShutdown() error {
	s.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.slogger.Info("shutdown signal received")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if s.controller != nil {
		s.controller.Shutdown()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.slogger.Error("error during server shutdown", "error", err)
		return fmt.Errorf("shutdown error: %w", err)
	}

	if s.logCloser != nil {
		if err := s.logCloser(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing server log file: %v\n", err)
		}
	}

	return nil
}

// Echo returns the underlying echo instance, useful for testing.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Controller returns the API controller.
func (s *Server) Controller() *Controller {
	return s.controller
}

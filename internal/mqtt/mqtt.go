// Package mqtt publishes localized events to an MQTT broker.
package mqtt

import (
	"context"
	"log/slog"
	"time"

	"github.com/tphakala/birdnet-array/internal/logging"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	Publish(ctx context.Context, topic, payload string) error

	// IsConnected reports whether the client is connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // default topic for publishing messages
	Retain   bool   // true to retain published messages at the broker

	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration

	// Connection timeouts
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    1 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

var logger *slog.Logger

func init() {
	logger = logging.ForService("mqtt")
	if logger == nil {
		logger = slog.Default().With("service", "mqtt")
	}
}

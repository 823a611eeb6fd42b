// Package notify delivers run completion notifications to operator
// configured services (ntfy, telegram, gotify, email, ...) addressed by
// shoutrrr URLs.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/logging"
)

// DefaultSendTimeout bounds a single delivery attempt across all services.
const DefaultSendTimeout = 10 * time.Second

var logger *slog.Logger

func init() {
	logger = logging.ForService("notify")
	if logger == nil {
		logger = slog.Default().With("service", "notify")
	}
}

// Notification is one message to deliver.
type Notification struct {
	Title   string
	Message string
}

// Notifier fans a notification out to every configured service URL through
// a single shoutrrr router. A disabled Notifier is valid and drops
// everything, so callers never need to branch on configuration.
type Notifier struct {
	enabled bool
	sender  *router.ServiceRouter
	limiter *rate.Limiter
}

// NewNotifier builds a Notifier from the output settings. The service URLs
// are validated up front so a typo fails the run start, not the first send.
func NewNotifier(settings *conf.Settings) (*Notifier, error) {
	cfg := settings.Output.Notification
	if !cfg.Enabled {
		return &Notifier{}, nil
	}
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("notification enabled but no service URLs configured").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(cfg.URLs)).
			Build()
	}
	sender.Timeout = DefaultSendTimeout
	// The router logs delivery details including service URLs; keep it
	// quiet so tokens embedded in those URLs stay out of the logs.
	sender.SetLogger(log.New(io.Discard, "", 0))

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(time.Duration(cfg.MinInterval) * time.Second)
	}

	logger.Info("notifications enabled",
		"services", len(cfg.URLs),
		"min_interval_s", cfg.MinInterval)

	return &Notifier{
		enabled: true,
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Enabled reports whether sends will be attempted.
func (n *Notifier) Enabled() bool { return n.enabled }

// Send delivers the notification to every configured service. Sends closer
// together than the configured minimum interval are dropped, not queued.
// Delivery uses the router's own per-send timeout.
func (n *Notifier) Send(ctx context.Context, notification Notification) error {
	if !n.enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !n.limiter.Allow() {
		logger.Info("notification suppressed by rate limit",
			"title", notification.Title)
		return nil
	}

	params := stypes.Params{}
	if notification.Title != "" {
		params.SetTitle(notification.Title)
	}
	for _, err := range n.sender.Send(notification.Message, &params) {
		if err != nil {
			return errors.New(err).
				Component("notify").
				Category(errors.CategoryNotification).
				Context("title", notification.Title).
				Build()
		}
	}

	logger.Debug("notification delivered", "title", notification.Title)
	return nil
}

// RunSummary formats a finished localization run into a notification.
func RunSummary(run *datastore.Run) Notification {
	elapsed := run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)
	message := fmt.Sprintf(
		"Localized %d of %d candidate events (%d rejected) in %s.\nAlgorithm %s, %d receivers, detections %s.",
		run.LocalizedCount, run.EventCount, run.RejectedCount, elapsed,
		run.Algorithm, run.ReceiverCount, run.DetectionsFile)
	return Notification{
		Title:   "Localization run complete",
		Message: message,
	}
}

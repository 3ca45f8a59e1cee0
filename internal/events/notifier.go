package events

import (
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

// Notifier turns lifecycle events into user-facing notifications. Rendering is
// left to whatever consumes the log; this only decides what is worth telling.
type Notifier struct {
	enabled func() bool
	logger  logger.Logger
}

// NewNotifier creates a notifier gated by enabled, evaluated on every event so
// settings changes apply immediately.
func NewNotifier(enabled func() bool, log logger.Logger) *Notifier {
	return &Notifier{enabled: enabled, logger: log}
}

func (n *Notifier) Publish(e Event) {
	if n.enabled != nil && !n.enabled() {
		return
	}

	title := e.Title
	if title == "" {
		title = e.TrackID
	}

	switch e.Type {
	case DownloadQueued:
		n.logger.Info("notification: Download Queued",
			logger.String("message", "Track queued for download: "+title))
	case DownloadComplete:
		n.logger.Info("notification: Download Complete",
			logger.String("message", "Successfully downloaded: "+title))
	case DownloadError:
		n.logger.Info("notification: Download Failed",
			logger.String("message", "Failed to download: "+title+" - "+e.Error))
	}
}

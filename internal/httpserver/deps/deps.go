package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/events"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
	"github.com/MrSnakeDoc/dlbridge/internal/settings"
	"github.com/MrSnakeDoc/dlbridge/internal/tracker"
)

// Connection is the connection manager as seen by the API.
type Connection interface {
	State() connection.State
	CheckStatus(ctx context.Context) connection.State
}

// Tracker is the download queue tracker as seen by the API.
type Tracker interface {
	Submit(ctx context.Context, req tracker.SubmitRequest) (string, error)
	Snapshot() []domain.Job
	Cancel(ctx context.Context, trackID string) error
	Active() int
}

// Settings is the settings service as seen by the API.
type Settings interface {
	Get() settings.Settings
	Update(ctx context.Context, p settings.Patch) (settings.Settings, error)
}

// Events streams published events to subscribers.
type Events interface {
	Subscribe() (<-chan events.Event, func())
}

// History reads archived finished jobs.
type History interface {
	Recent(ctx context.Context, limit int) ([]domain.Job, error)
	Accessible(ctx context.Context) error
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedHosts   []string         // Host headers allowed to reach the API
	AllowedCIDRS   []string         // IPs allowed to access the API
	AllowedOrigins []string         // CORS origins allowed to call the API
	TrustProxy     bool             // true if running behind a trusted reverse proxy
	SubmitRate     int              // submissions per minute and client, 0 = unlimited
	Connection     Connection       // service connection manager
	Tracker        Tracker          // download queue tracker
	Settings       Settings         // user settings
	Events         Events           // event hub for the SSE stream
	History        History          // finished job archive (nil if disabled)
	Redis          Pinger           // job mirror store (nil if disabled)
}

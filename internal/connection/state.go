package connection

import (
	"net"
	"strconv"
	"time"
)

// Status is the connection state value.
type Status string

const (
	Disconnected Status = "disconnected"
	Connecting   Status = "connecting"
	Connected    Status = "connected"
)

func (s Status) String() string { return string(s) }

// Endpoint locates the download service.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// BaseURL returns the http base URL of the endpoint, without trailing slash.
func (e Endpoint) BaseURL() string {
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// State is a snapshot of the manager.
type State struct {
	Status          Status     `json:"status"`
	Endpoint        Endpoint   `json:"endpoint"`
	BaseURL         string     `json:"url"`
	AttemptCount    int        `json:"attemptCount"`
	LastCheckedAt   time.Time  `json:"lastCheckedAt"`
	LastConnectedAt *time.Time `json:"lastConnectedAt"`
	NextRetryAt     *time.Time `json:"nextRetryAt,omitempty"`
}

// Connected reports whether the snapshot is in the Connected state.
func (s State) Connected() bool {
	return s.Status == Connected
}

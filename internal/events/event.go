package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names the kind of event published to the sink.
type Type string

const (
	ConnectionChanged Type = "connectionChanged"
	DownloadQueued    Type = "downloadQueued"
	DownloadProgress  Type = "downloadProgress"
	DownloadComplete  Type = "downloadComplete"
	DownloadError     Type = "downloadError"
	SettingsChanged   Type = "settingsChanged"
)

// Event is the stable contract consumed by UI layers.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	TrackID  string    `json:"trackId,omitempty"`
	QueueID  string    `json:"queueId,omitempty"`
	Status   string    `json:"status,omitempty"`
	Progress *int      `json:"progress,omitempty"`
	Error    string    `json:"error,omitempty"`
	Title    string    `json:"title,omitempty"`
	Data     any       `json:"data,omitempty"`
	At       time.Time `json:"at"`
}

// New stamps an event with a time-ordered id and the current time.
func New(t Type) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{ID: id.String(), Type: t, At: time.Now()}
}

// Connection builds a connectionChanged event.
func Connection(status string) Event {
	e := New(ConnectionChanged)
	e.Status = status
	return e
}

// Queued builds a downloadQueued event.
func Queued(trackID, queueID, title string) Event {
	e := New(DownloadQueued)
	e.TrackID, e.QueueID, e.Title = trackID, queueID, title
	return e
}

// Progress builds a downloadProgress event.
func Progress(trackID string, progress int) Event {
	e := New(DownloadProgress)
	e.TrackID = trackID
	e.Progress = &progress
	return e
}

// Complete builds a downloadComplete event.
func Complete(trackID, title string) Event {
	e := New(DownloadComplete)
	e.TrackID, e.Title = trackID, title
	return e
}

// Failed builds a downloadError event. An empty reason becomes "Unknown error".
func Failed(trackID, title, reason string) Event {
	if reason == "" {
		reason = "Unknown error"
	}
	e := New(DownloadError)
	e.TrackID, e.Title, e.Error = trackID, title, reason
	return e
}

// Sink receives lifecycle and status events. Publish must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Multi fans an event out to several sinks in order. Nil sinks are skipped.
type Multi []Sink

func (m Multi) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

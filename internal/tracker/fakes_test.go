package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/events"
	"github.com/MrSnakeDoc/dlbridge/internal/remote"
)

const testBaseURL = "http://localhost:1337"

var errQueueDown = errors.New("queue unreachable")

type fakeConn struct {
	mu        sync.Mutex
	connected bool
	recover   bool // CheckStatus flips to connected
	checks    int
}

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) CheckStatus(ctx context.Context) connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks++
	if c.recover {
		c.connected = true
	}
	if c.connected {
		return connection.State{Status: connection.Connected}
	}
	return connection.State{Status: connection.Disconnected}
}

func (c *fakeConn) BaseURL() string { return testBaseURL }

// queueStep is one scripted answer of GET /queue.
type queueStep struct {
	items []remote.QueueItem
	err   error
}

// fakeQueue accepts every submission and replays a script of queue answers.
// The last step repeats once the script is exhausted.
type fakeQueue struct {
	mu         sync.Mutex
	queueID    string
	enqueueErr error
	enqueued   []remote.EnqueueRequest
	script     []queueStep
	polls      int
	cancelled  []string
	cancelErr  error
	gate       chan struct{} // when set, Enqueue waits on it
}

func (q *fakeQueue) Enqueue(ctx context.Context, baseURL, trackID string, req remote.EnqueueRequest) (*remote.EnqueueResponse, error) {
	if q.gate != nil {
		<-q.gate
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, req)
	if q.enqueueErr != nil {
		return nil, q.enqueueErr
	}
	id := q.queueID
	if id == "" {
		id = "q-" + trackID
	}
	return &remote.EnqueueResponse{QueueID: id, Status: "queued", Position: 1}, nil
}

func (q *fakeQueue) Queue(ctx context.Context, baseURL string) ([]remote.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.script) == 0 {
		return nil, nil
	}
	i := min(q.polls, len(q.script)-1)
	q.polls++
	step := q.script[i]
	return step.items, step.err
}

func (q *fakeQueue) Cancel(ctx context.Context, baseURL, queueID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, queueID)
	return q.cancelErr
}

func (q *fakeQueue) enqueueCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.enqueued)
}

func (q *fakeQueue) pollCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.polls
}

func item(id, status string, progress int) queueStep {
	return queueStep{items: []remote.QueueItem{{ID: id, Status: status, Progress: progress}}}
}

// eventLog is a Sink that keeps every event.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
	notify chan events.Event

	// When hold is set, Publish of a downloadQueued event signals held and
	// waits on hold.
	hold chan struct{}
	held chan struct{}
}

func newEventLog() *eventLog {
	return &eventLog{notify: make(chan events.Event, 256)}
}

func (l *eventLog) Publish(e events.Event) {
	if l.hold != nil && e.Type == events.DownloadQueued {
		close(l.held)
		<-l.hold
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	l.notify <- e
}

func (l *eventLog) ofType(t events.Type) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// waitFor blocks until an event of type t is published.
func (l *eventLog) waitFor(t events.Type, timeout time.Duration) (events.Event, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case e := <-l.notify:
			if e.Type == t {
				return e, true
			}
		case <-deadline:
			return events.Event{}, false
		}
	}
}

type memRecorder struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newMemRecorder() *memRecorder { return &memRecorder{jobs: make(map[string]domain.Job)} }

func (r *memRecorder) SaveJob(ctx context.Context, job domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.TrackID] = job
	return nil
}

func (r *memRecorder) DeleteJob(ctx context.Context, trackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, trackID)
	return nil
}

func (r *memRecorder) get(trackID string) (domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[trackID]
	return j, ok
}

type memArchiver struct {
	mu    sync.Mutex
	jobs  []domain.Job
	delay time.Duration // simulated slow bucket
}

func (a *memArchiver) Archive(ctx context.Context, job domain.Job) error {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job)
	return nil
}

func (a *memArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.jobs)
}

func fastOptions() Options {
	return Options{
		InitialDelay:       time.Millisecond,
		PollInterval:       time.Millisecond,
		ErrorBackoffBase:   time.Millisecond,
		ErrorBackoffFactor: 1,
		ErrorBackoffMax:    5 * time.Millisecond,
		MaxPollFailures:    5,
		MaxMissingPolls:    5,
		ProgressStep:       10,
		Retention:          time.Hour,
	}
}

type harness struct {
	tr       *Tracker
	conn     *fakeConn
	queue    *fakeQueue
	events   *eventLog
	recorder *memRecorder
	archive  *memArchiver
}

func newHarness(opts Options, script ...queueStep) *harness {
	h := &harness{
		conn:     &fakeConn{connected: true},
		queue:    &fakeQueue{script: script},
		events:   newEventLog(),
		recorder: newMemRecorder(),
		archive:  &memArchiver{},
	}
	h.tr = New(Deps{
		Conn:           h.conn,
		Client:         h.queue,
		Sink:           h.events,
		Recorder:       h.recorder,
		Archiver:       h.archive,
		DefaultQuality: func() string { return "flac" },
	}, opts)
	return h
}

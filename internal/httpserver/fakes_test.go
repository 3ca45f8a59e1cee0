package httpserver

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/tracker"
)

type fakeConnection struct {
	mu     sync.Mutex
	state  connection.State
	checks int
}

func (c *fakeConnection) State() connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConnection) CheckStatus(ctx context.Context) connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks++
	return c.state
}

type fakeTracker struct {
	mu        sync.Mutex
	submitted []tracker.SubmitRequest
	submitErr error
	cancelErr error
	cancelled []string
	jobs      []domain.Job
}

func (t *fakeTracker) Submit(ctx context.Context, req tracker.SubmitRequest) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.submitErr != nil {
		return "", t.submitErr
	}
	t.submitted = append(t.submitted, req)
	return "q-" + req.TrackID, nil
}

func (t *fakeTracker) Snapshot() []domain.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Job{}, t.jobs...)
}

func (t *fakeTracker) Cancel(ctx context.Context, trackID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = append(t.cancelled, trackID)
	return t.cancelErr
}

func (t *fakeTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, j := range t.jobs {
		if !j.Status.IsTerminal() {
			n++
		}
	}
	return n
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(ctx context.Context) error { return p.err }

package connection

import (
	"context"
	"errors"
	"sync"

	"github.com/MrSnakeDoc/dlbridge/internal/remote"
)

var errDown = errors.New("connection refused")

// fakeProber answers probes per base URL and records every call.
type fakeProber struct {
	mu      sync.Mutex
	up      map[string]bool
	calls   []string
	block   chan struct{} // when set, probes wait on it
	entered chan struct{} // signalled when a probe starts
}

func newFakeProber(up ...string) *fakeProber {
	p := &fakeProber{up: make(map[string]bool)}
	for _, u := range up {
		p.up[u] = true
	}
	return p
}

func (p *fakeProber) Status(ctx context.Context, baseURL string) (*remote.Health, error) {
	p.mu.Lock()
	p.calls = append(p.calls, baseURL)
	block, entered := p.block, p.entered
	p.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.up[baseURL] {
		return &remote.Health{Status: remote.StatusRunning}, nil
	}
	return nil, errDown
}

func (p *fakeProber) set(baseURL string, up bool) {
	p.mu.Lock()
	p.up[baseURL] = up
	p.mu.Unlock()
}

func (p *fakeProber) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// recordingSaver records persisted ports and the port they replaced.
type recordingSaver struct {
	mu    sync.Mutex
	ports []int
	from  []int
	stale bool // answer as if the settings moved on
}

func (s *recordingSaver) SavePort(_ context.Context, _ string, from, port int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		return false, nil
	}
	s.ports = append(s.ports, port)
	s.from = append(s.from, from)
	return true, nil
}

func (s *recordingSaver) saved() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.ports...)
}

package connection

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/logger"
	"github.com/MrSnakeDoc/dlbridge/internal/remote"
)

// Prober performs a single health probe against a base URL.
type Prober interface {
	Status(ctx context.Context, baseURL string) (*remote.Health, error)
}

// PortSaver persists a port found by the fallback sweep. It only saves when the
// stored endpoint is still host:from and reports false when it moved on.
type PortSaver interface {
	SavePort(ctx context.Context, host string, from, port int) (bool, error)
}

// Listener is invoked when the status value changes.
type Listener func(State)

// Manager owns the service endpoint and the connection state machine.
type Manager struct {
	prober Prober
	saver  PortSaver
	opts   Options
	logger logger.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	endpoint  Endpoint
	state     State
	gen       uint64 // bumped by Reconfigure
	retry     *time.Timer
	listeners map[int]Listener
	nextID    int
	closed    bool
}

// NewManager creates a manager for endpoint. saver may be nil.
func NewManager(endpoint Endpoint, prober Prober, saver PortSaver, opts Options, log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		prober:    prober,
		saver:     saver,
		opts:      opts,
		logger:    log,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		endpoint:  endpoint,
		state:     State{Status: Disconnected},
		listeners: make(map[int]Listener),
	}
}

// Start runs the first check in the background and stops the manager when ctx ends.
func (m *Manager) Start(ctx context.Context) {
	context.AfterFunc(ctx, m.Stop)
	go m.CheckStatus(m.ctx)
}

// Stop cancels in-flight probes and the pending retry. It is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.closed = true
	m.stopRetryLocked()
	m.mu.Unlock()
	m.cancel()
}

// OnStateChange registers l; it runs on every status transition, not on every check.
// The returned func unregisters it.
func (m *Manager) OnStateChange(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Connected reports whether the service is currently reachable.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Status == Connected
}

// BaseURL returns the base URL of the current endpoint.
func (m *Manager) BaseURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint.BaseURL()
}

// Reconfigure moves to a new endpoint and checks it right away.
func (m *Manager) Reconfigure(ctx context.Context, host string, port int) State {
	m.mu.Lock()
	m.endpoint = Endpoint{Host: host, Port: port}
	m.gen++
	m.mu.Unlock()

	m.logger.Info("service endpoint reconfigured",
		logger.String("host", host),
		logger.Int("port", port))

	return m.CheckStatus(ctx)
}

// CheckStatus probes the service and returns the resulting state. It never fails:
// every failure resolves into Disconnected plus a scheduled retry. When a check is
// already in flight the current state is returned without probing again. If ctx
// ends first the check keeps running and the current state is returned.
func (m *Manager) CheckStatus(ctx context.Context) State {
	run, ok := m.begin()
	if !ok {
		return m.State()
	}

	done := make(chan State, 1)
	go func() { done <- run() }()

	select {
	case s := <-done:
		return s
	case <-ctx.Done():
		return m.State()
	}
}

// begin flips the state to Connecting and returns the check to run,
// or false when a check is already in flight or the manager is stopped.
func (m *Manager) begin() (func() State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.state.Status == Connecting {
		return nil, false
	}

	prev := m.state.Status
	m.state.Status = Connecting
	m.state.LastCheckedAt = m.now()
	m.stopRetryLocked()

	gen := m.gen
	ep := m.endpoint
	sweep := m.state.LastConnectedAt == nil

	return func() State { return m.check(gen, ep, prev, sweep) }, true
}

func (m *Manager) check(gen uint64, ep Endpoint, prev Status, sweep bool) State {
	err := m.probe(ep)
	if err == nil {
		return m.finishConnected(gen, ep, ep, prev)
	}
	m.logger.Warn("download service not reachable",
		logger.String("url", ep.BaseURL()),
		logger.Error(err))

	if sweep {
		for _, port := range m.opts.FallbackPorts {
			if port == ep.Port {
				continue
			}
			if m.ctx.Err() != nil {
				break
			}
			alt := Endpoint{Host: ep.Host, Port: port}
			m.logger.Debug("trying fallback port", logger.Int("port", port))
			if err := m.probe(alt); err != nil {
				m.logger.Debug("fallback port not available",
					logger.Int("port", port),
					logger.Error(err))
				continue
			}
			return m.finishConnected(gen, ep, alt, prev)
		}
	}

	return m.finishDisconnected(gen, prev)
}

func (m *Manager) probe(ep Endpoint) error {
	_, err := m.prober.Status(m.ctx, ep.BaseURL())
	return err
}

// finishConnected records a successful probe of ep, which differs from the
// checked endpoint orig when the fallback sweep found it.
func (m *Manager) finishConnected(gen uint64, orig, ep Endpoint, prev Status) State {
	discovered := ep != orig

	m.mu.Lock()
	if m.gen != gen {
		return m.restartLocked(prev)
	}

	now := m.now()
	if discovered {
		m.endpoint = ep
	}
	m.state.Status = Connected
	m.state.AttemptCount = 0
	m.state.LastConnectedAt = &now
	m.state.NextRetryAt = nil
	snap := m.snapshotLocked()
	listeners := m.listenersLocked(prev)
	m.mu.Unlock()

	if discovered {
		m.logger.Info("download service found on fallback port",
			logger.Int("port", ep.Port))
		if m.saver != nil {
			saved, err := m.saver.SavePort(m.ctx, orig.Host, orig.Port, ep.Port)
			switch {
			case err != nil:
				m.logger.Warn("failed to persist discovered port", logger.Error(err))
			case !saved:
				m.logger.Debug("endpoint changed meanwhile, discovered port not saved",
					logger.Int("port", ep.Port))
			}
		}
	}
	if prev != Connected {
		m.logger.Info("connected to download service",
			logger.String("url", snap.BaseURL))
	}

	notify(listeners, snap)
	return snap
}

func (m *Manager) finishDisconnected(gen uint64, prev Status) State {
	m.mu.Lock()
	if m.gen != gen {
		return m.restartLocked(prev)
	}

	m.state.Status = Disconnected
	m.state.AttemptCount++
	m.state.NextRetryAt = nil

	if !m.closed {
		delay := m.opts.RetryDelay(m.state.AttemptCount)
		next := m.now().Add(delay)
		m.state.NextRetryAt = &next
		m.retry = time.AfterFunc(delay, func() { m.CheckStatus(m.ctx) })

		m.logger.Info("download service unavailable, retry scheduled",
			logger.Int("attempt", m.state.AttemptCount),
			logger.Duration("next_retry_in", delay))
	}

	snap := m.snapshotLocked()
	listeners := m.listenersLocked(prev)
	m.mu.Unlock()

	notify(listeners, snap)
	return snap
}

// restartLocked discards a result that raced with Reconfigure and checks the new
// endpoint instead. It releases m.mu.
func (m *Manager) restartLocked(prev Status) State {
	m.state.Status = prev
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Debug("endpoint changed during check, checking again")
	go m.CheckStatus(m.ctx)
	return snap
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.state.NextRetryAt = nil
}

func (m *Manager) snapshotLocked() State {
	s := m.state
	s.Endpoint = m.endpoint
	s.BaseURL = m.endpoint.BaseURL()
	if m.state.LastConnectedAt != nil {
		t := *m.state.LastConnectedAt
		s.LastConnectedAt = &t
	}
	if m.state.NextRetryAt != nil {
		t := *m.state.NextRetryAt
		s.NextRetryAt = &t
	}
	return s
}

// listenersLocked returns the listeners to notify when the status moved away from prev.
func (m *Manager) listenersLocked(prev Status) []Listener {
	if m.state.Status == prev {
		return nil
	}
	out := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, s State) {
	for _, l := range listeners {
		l(s)
	}
}

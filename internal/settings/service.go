package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/dlbridge/internal/events"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

// Service holds the current settings and persists changes.
type Service struct {
	mu       sync.RWMutex
	current  Settings
	store    Store
	sink     events.Sink
	logger   logger.Logger
	onChange func(host string, port int)
}

// NewService creates a settings service starting from initial.
func NewService(store Store, initial Settings, sink events.Sink, log logger.Logger) *Service {
	if store == nil {
		store = &MemoryStore{}
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Service{
		current: initial,
		store:   store,
		sink:    sink,
		logger:  log,
	}
}

// Init loads persisted settings, keeping the initial ones when nothing valid is stored.
func (s *Service) Init(ctx context.Context) error {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("no persisted settings, using configured defaults")
			return nil
		}
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		s.logger.Warn("ignoring invalid persisted settings", logger.Error(err))
		return nil
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.logger.Info("settings loaded",
		logger.String("service_host", loaded.ServiceHost),
		logger.Int("service_port", loaded.ServicePort),
		logger.String("download_quality", loaded.DownloadQuality))
	return nil
}

// OnEndpointChange registers the hook invoked after an update changed host or port.
func (s *Service) OnEndpointChange(fn func(host string, port int)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Get returns the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// DownloadQuality returns the default quality for submissions.
func (s *Service) DownloadQuality() string {
	return s.Get().DownloadQuality
}

// NotificationsEnabled reports whether user notifications are on.
func (s *Service) NotificationsEnabled() bool {
	return s.Get().NotificationsEnabled
}

// Update validates and persists a partial update. When host or port changed,
// the endpoint hook runs after the new settings are in place.
func (s *Service) Update(ctx context.Context, p Patch) (Settings, error) {
	s.mu.Lock()
	prev := s.current
	next := p.Apply(prev)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return prev, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return prev, fmt.Errorf("failed to save settings: %w", err)
	}
	s.current = next
	hook := s.onChange
	s.mu.Unlock()

	s.publish(next)

	if hook != nil && (prev.ServiceHost != next.ServiceHost || prev.ServicePort != next.ServicePort) {
		hook(next.ServiceHost, next.ServicePort)
	}
	return next, nil
}

// SavePort records a port discovered by the fallback sweep, as long as the
// settings still point at host:from. It reports false when an update changed
// the endpoint in the meantime. The endpoint hook is not invoked: the caller
// already moved to that port.
func (s *Service) SavePort(ctx context.Context, host string, from, port int) (bool, error) {
	s.mu.Lock()
	if s.current.ServiceHost != host || s.current.ServicePort != from {
		s.mu.Unlock()
		return false, nil
	}
	next := s.current
	next.ServicePort = port
	if err := s.store.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("failed to save service port: %w", err)
	}
	s.current = next
	s.mu.Unlock()

	s.logger.Info("saved discovered service port", logger.Int("port", port))
	s.publish(next)
	return true, nil
}

func (s *Service) publish(next Settings) {
	e := events.New(events.SettingsChanged)
	e.Data = next
	s.sink.Publish(e)
}

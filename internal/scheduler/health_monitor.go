package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

// StatusChecker runs one connection check.
type StatusChecker interface {
	CheckStatus(ctx context.Context) connection.State
}

// HealthMonitor re-checks the download service on a fixed interval, on top of
// the retry timer the connection manager drives itself.
type HealthMonitor struct {
	checker  StatusChecker
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(checker StatusChecker, log logger.Logger, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{
		checker:  checker,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic checks. A non-positive interval disables them.
func (hm *HealthMonitor) Start(ctx context.Context) error {
	if hm.interval <= 0 {
		hm.logger.Info("periodic health check disabled")
		return nil
	}

	ticker := time.NewTicker(hm.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hm.Check(ctx)
			case <-hm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the health monitor
func (hm *HealthMonitor) Stop() {
	hm.stopOnce.Do(func() { close(hm.stopCh) })
}

// Check runs one status check and logs the outcome
func (hm *HealthMonitor) Check(ctx context.Context) connection.State {
	state := hm.checker.CheckStatus(ctx)
	if state.Connected() {
		hm.logger.Debug("periodic health check passed",
			logger.String("url", state.BaseURL))
	} else {
		hm.logger.Debug("periodic health check failed",
			logger.String("status", state.Status.String()),
			logger.Int("attempts", state.AttemptCount))
	}
	return state
}

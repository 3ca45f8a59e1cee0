package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

const (
	// DefaultHistoryMaxAge is how long finished job records are kept
	DefaultHistoryMaxAge = 30 * 24 * time.Hour // 30 days
)

// Pruner deletes history records filed before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// HistoryPruner handles cleanup of old finished job records
type HistoryPruner struct {
	archive  Pruner
	logger   logger.Logger
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHistoryPruner creates a new history pruner
func NewHistoryPruner(
	archive Pruner,
	log logger.Logger,
	interval time.Duration,
	maxAge time.Duration,
) *HistoryPruner {
	if maxAge == 0 {
		maxAge = DefaultHistoryMaxAge
	}

	return &HistoryPruner{
		archive:  archive,
		logger:   log,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic pruning process
func (hp *HistoryPruner) Start(ctx context.Context) error {
	// Run immediately on start
	if err := hp.Collect(ctx); err != nil {
		hp.logger.Warn("initial history pruning failed",
			logger.Error(err))
	}

	if hp.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(hp.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := hp.Collect(ctx); err != nil {
					hp.logger.Error("history pruning failed",
						logger.Error(err))
				}
			case <-hp.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the history pruner
func (hp *HistoryPruner) Stop() {
	hp.stopOnce.Do(func() { close(hp.stopCh) })
}

// Collect removes records older than the max age
func (hp *HistoryPruner) Collect(ctx context.Context) error {
	cutoff := hp.now().Add(-hp.maxAge)
	removed, err := hp.archive.Prune(ctx, cutoff)
	if err != nil {
		return err
	}

	if removed > 0 {
		hp.logger.Info("history pruning completed",
			logger.Int("records_deleted", removed),
			logger.Time("cutoff", cutoff))
	} else {
		hp.logger.Debug("no history records to prune")
	}

	return nil
}

package tracker

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/events"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
	"github.com/MrSnakeDoc/dlbridge/internal/remote"
)

// loop polls the service queue for one job until it reaches a terminal state
// or ctx is cancelled. Each iteration schedules the next one only after the
// previous poll returned. The caller has already added the loop to t.wg.
func (t *Tracker) loop(ctx context.Context, trackID string, gen uint64, delay time.Duration) {
	defer t.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next, done := t.poll(ctx, trackID, gen)
		if done {
			return
		}
		timer.Reset(next)
	}
}

// poll runs one status check and returns the delay before the next one, or
// done when the loop should exit.
func (t *Tracker) poll(ctx context.Context, trackID string, gen uint64) (time.Duration, bool) {
	t.mu.RLock()
	job, _, ok := t.liveLocked(trackID, gen)
	var queueID string
	if ok {
		queueID = job.QueueID
	}
	t.mu.RUnlock()
	if !ok {
		return 0, true
	}

	items, err := t.deps.Client.Queue(ctx, t.deps.Conn.BaseURL())
	if ctx.Err() != nil {
		return 0, true
	}
	if err != nil {
		return t.pollFailed(trackID, gen, err)
	}

	for _, item := range items {
		if item.ID == queueID {
			return t.pollFound(trackID, gen, item)
		}
	}
	return t.pollMissing(trackID, gen)
}

func (t *Tracker) pollFound(trackID string, gen uint64, item remote.QueueItem) (time.Duration, bool) {
	t.mu.Lock()
	job, _, ok := t.liveLocked(trackID, gen)
	if !ok {
		t.mu.Unlock()
		return 0, true
	}

	prev := job.Status
	job.Status = domain.ParseJobStatus(item.Status)
	job.Progress = domain.ClampProgress(item.Progress)
	job.Position = max(item.Position, 0)
	job.Error = item.Error
	job.MissingCount = 0
	job.UpdatedAt = t.now()

	terminal := job.Status.IsTerminal()
	if terminal {
		job.FinishedAt = job.UpdatedAt
	}
	changed := prev != job.Status
	snap := job.Clone()
	t.mu.Unlock()

	if terminal {
		t.complete(snap, gen)
		return 0, true
	}

	if changed || t.opts.heartbeat(snap.Progress) {
		t.record(snap)
		if snap.Status == domain.JobDownloading {
			e := events.Progress(trackID, snap.Progress)
			e.Status = string(snap.Status)
			t.deps.Sink.Publish(e)
		}
	}
	return t.opts.PollInterval, false
}

func (t *Tracker) pollMissing(trackID string, gen uint64) (time.Duration, bool) {
	t.mu.Lock()
	job, _, ok := t.liveLocked(trackID, gen)
	if !ok {
		t.mu.Unlock()
		return 0, true
	}

	job.MissingCount++
	if job.MissingCount < t.opts.MaxMissingPolls {
		n := job.MissingCount
		t.mu.Unlock()
		t.log.Debug("job not in service queue",
			logger.String("track_id", trackID),
			logger.Int("missing", n))
		return t.opts.PollInterval, false
	}

	job.Heuristic = true
	t.finishLocked(job, domain.JobCompleted, "")
	snap := job.Clone()
	t.mu.Unlock()

	t.complete(snap, gen)
	return 0, true
}

func (t *Tracker) pollFailed(trackID string, gen uint64, err error) (time.Duration, bool) {
	t.mu.Lock()
	job, _, ok := t.liveLocked(trackID, gen)
	if !ok {
		t.mu.Unlock()
		return 0, true
	}

	job.PollFailures++
	n := job.PollFailures
	if n < t.opts.MaxPollFailures {
		t.mu.Unlock()
		delay := t.opts.ErrorBackoff(n)
		t.log.Warn("queue poll failed",
			logger.String("track_id", trackID),
			logger.Int("failures", n),
			logger.Duration("retry_in", delay),
			logger.Error(err))
		return delay, false
	}

	t.finishLocked(job, domain.JobFailed, domain.ReasonConnectionLost)
	snap := job.Clone()
	t.mu.Unlock()

	t.complete(snap, gen)
	return 0, true
}

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/events"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
	"github.com/MrSnakeDoc/dlbridge/internal/remote"
)

// persistTimeout bounds best-effort writes to the recorder and archiver.
const persistTimeout = 3 * time.Second

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("tracker stopped")

// Connection is the part of the connection manager the tracker relies on.
type Connection interface {
	Connected() bool
	CheckStatus(ctx context.Context) connection.State
	BaseURL() string
}

// QueueClient is the transport to the download service.
type QueueClient interface {
	Enqueue(ctx context.Context, baseURL, trackID string, req remote.EnqueueRequest) (*remote.EnqueueResponse, error)
	Queue(ctx context.Context, baseURL string) ([]remote.QueueItem, error)
	Cancel(ctx context.Context, baseURL, queueID string) error
}

// Recorder mirrors job state to durable storage.
type Recorder interface {
	SaveJob(ctx context.Context, job domain.Job) error
	DeleteJob(ctx context.Context, trackID string) error
}

// Archiver keeps a record of finished jobs.
type Archiver interface {
	Archive(ctx context.Context, job domain.Job) error
}

// SubmitRequest is a download intent coming from a page integration.
type SubmitRequest struct {
	TrackID  string         `json:"trackId"`
	Quality  string         `json:"quality"`
	Metadata map[string]any `json:"metadata"`
}

// Deps are the collaborators of a Tracker. Sink, Recorder, Archiver and
// DefaultQuality are optional.
type Deps struct {
	Conn           Connection
	Client         QueueClient
	Sink           events.Sink
	Recorder       Recorder
	Archiver       Archiver
	DefaultQuality func() string
	Logger         logger.Logger
}

// task is the handle of one job's poll loop.
type task struct {
	gen    uint64
	cancel context.CancelFunc
	evict  *time.Timer
}

// Tracker owns the table of submitted jobs and one poll loop per job.
type Tracker struct {
	deps Deps
	opts Options
	log  logger.Logger
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	jobs    map[string]*domain.Job
	tasks   map[string]*task
	pending map[string]struct{}
	gen     uint64
	closed  bool
}

// New creates a tracker.
func New(deps Deps, opts Options) *Tracker {
	if deps.Sink == nil {
		deps.Sink = events.Discard
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.DefaultQuality == nil {
		deps.DefaultQuality = func() string { return "" }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		deps:    deps,
		opts:    opts,
		log:     deps.Logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*domain.Job),
		tasks:   make(map[string]*task),
		pending: make(map[string]struct{}),
	}
}

// Submit sends a download to the service and starts tracking it.
// It returns the service queue id.
func (t *Tracker) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	trackID := strings.TrimSpace(req.TrackID)
	if trackID == "" {
		return "", fmt.Errorf("%w: track id is required", domain.ErrInvalidRequest)
	}

	if err := t.reserve(trackID); err != nil {
		return "", err
	}
	defer t.release(trackID)

	if !t.deps.Conn.Connected() {
		if s := t.deps.Conn.CheckStatus(ctx); !s.Connected() {
			return "", domain.ErrNotConnected
		}
	}

	quality := strings.TrimSpace(req.Quality)
	if quality == "" {
		quality = t.deps.DefaultQuality()
	}
	metadata := make(map[string]any, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	resp, err := t.deps.Client.Enqueue(ctx, t.deps.Conn.BaseURL(), trackID, remote.EnqueueRequest{
		Quality:  quality,
		Metadata: metadata,
	})
	if err != nil {
		t.log.Warn("download request failed",
			logger.String("track_id", trackID),
			logger.Error(err))
		return "", fmt.Errorf("submit %s: %w", trackID, err)
	}

	now := t.now()
	job := &domain.Job{
		TrackID:   trackID,
		QueueID:   resp.QueueID,
		Quality:   quality,
		Status:    domain.JobQueued,
		Position:  max(resp.Position, 0),
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	gen, taskCtx, err := t.insert(job, true)
	if err != nil {
		return "", err
	}
	snap := job.Clone()

	t.log.Info("download queued",
		logger.String("track_id", trackID),
		logger.String("queue_id", resp.QueueID),
		logger.String("quality", quality),
		logger.Int("position", job.Position))

	t.record(snap)
	t.deps.Sink.Publish(events.Queued(trackID, resp.QueueID, snap.Title()))
	go t.loop(taskCtx, trackID, gen, t.opts.InitialDelay)

	return resp.QueueID, nil
}

// reserve claims trackID for an in-flight submission.
func (t *Tracker) reserve(trackID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrStopped
	}
	if _, busy := t.pending[trackID]; busy {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyTracked, trackID)
	}
	if job, ok := t.jobs[trackID]; ok && !job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyTracked, trackID)
	}
	t.pending[trackID] = struct{}{}
	return nil
}

func (t *Tracker) release(trackID string) {
	t.mu.Lock()
	delete(t.pending, trackID)
	t.mu.Unlock()
}

// insert stores job, replacing a retained terminal job with the same track id.
// With poll set it also accounts for the loop the caller is about to start, so
// Stop waits for it even when it races with this call.
func (t *Tracker) insert(job *domain.Job, poll bool) (uint64, context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, nil, ErrStopped
	}
	if poll {
		t.wg.Add(1)
	}
	if old, ok := t.tasks[job.TrackID]; ok {
		old.stop()
	}

	t.gen++
	ctx, cancel := context.WithCancel(t.ctx)
	t.jobs[job.TrackID] = job
	t.tasks[job.TrackID] = &task{gen: t.gen, cancel: cancel}
	return t.gen, ctx, nil
}

func (tk *task) stop() {
	tk.cancel()
	if tk.evict != nil {
		tk.evict.Stop()
	}
}

// Snapshot returns copies of all tracked jobs, newest first.
func (t *Tracker) Snapshot() []domain.Job {
	t.mu.RLock()
	out := make([]domain.Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job.Clone())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns a copy of the job tracked for trackID.
func (t *Tracker) Get(trackID string) (domain.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[trackID]
	if !ok {
		return domain.Job{}, false
	}
	return job.Clone(), true
}

// Active returns the number of jobs that are not terminal yet.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, job := range t.jobs {
		if !job.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Cancel asks the service to drop the job and marks it failed. It is only
// available when the service supports cancellation.
func (t *Tracker) Cancel(ctx context.Context, trackID string) error {
	if !t.opts.CancelSupported {
		return domain.ErrCancelUnsupported
	}

	t.mu.RLock()
	job, ok := t.jobs[trackID]
	if !ok {
		t.mu.RUnlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, trackID)
	}
	if job.Status.IsTerminal() {
		t.mu.RUnlock()
		return nil
	}
	queueID := job.QueueID
	gen := t.tasks[trackID].gen
	t.mu.RUnlock()

	if err := t.deps.Client.Cancel(ctx, t.deps.Conn.BaseURL(), queueID); err != nil {
		return fmt.Errorf("cancel %s: %w", trackID, err)
	}

	t.mu.Lock()
	job, tk, ok := t.liveLocked(trackID, gen)
	if !ok {
		t.mu.Unlock()
		return nil
	}
	tk.cancel()
	t.finishLocked(job, domain.JobFailed, domain.ReasonCancelled)
	snap := job.Clone()
	t.mu.Unlock()

	t.log.Info("download cancelled", logger.String("track_id", trackID))
	t.complete(snap, gen)
	return nil
}

// Restore resumes tracking of jobs loaded from storage. Non-terminal jobs get a
// fresh poll loop; terminal ones are kept for what is left of their retention.
func (t *Tracker) Restore(jobs []domain.Job) int {
	restored := 0
	for _, j := range jobs {
		if j.TrackID == "" || j.QueueID == "" {
			continue
		}
		job := j.Clone()

		if job.Status.IsTerminal() {
			left := t.opts.Retention - t.now().Sub(job.FinishedAt)
			if left <= 0 {
				t.forget(job.TrackID)
				continue
			}
			gen, _, err := t.insert(&job, false)
			if err != nil {
				return restored
			}
			t.scheduleEviction(job.TrackID, gen, left)
			restored++
			continue
		}

		gen, ctx, err := t.insert(&job, true)
		if err != nil {
			return restored
		}
		go t.loop(ctx, job.TrackID, gen, t.opts.InitialDelay)
		restored++
	}
	return restored
}

// Stop cancels every poll loop and pending eviction and waits for the loops to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.closed = true
	for _, tk := range t.tasks {
		tk.stop()
	}
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

// liveLocked returns the job and task for trackID when they still belong to
// generation gen and the job is not terminal.
func (t *Tracker) liveLocked(trackID string, gen uint64) (*domain.Job, *task, bool) {
	tk, ok := t.tasks[trackID]
	if !ok || tk.gen != gen {
		return nil, nil, false
	}
	job := t.jobs[trackID]
	if job == nil || job.Status.IsTerminal() {
		return nil, nil, false
	}
	return job, tk, true
}

func (t *Tracker) finishLocked(job *domain.Job, status domain.JobStatus, reason string) {
	now := t.now()
	job.Status = status
	if reason != "" {
		job.Error = reason
	}
	job.UpdatedAt = now
	job.FinishedAt = now
}

// complete schedules eviction, publishes the terminal event and archives the job.
// Retention counts from FinishedAt, so slow persistence never delays eviction.
func (t *Tracker) complete(job domain.Job, gen uint64) {
	left := t.opts.Retention
	if !job.FinishedAt.IsZero() {
		left -= t.now().Sub(job.FinishedAt)
	}
	t.scheduleEviction(job.TrackID, gen, max(left, 0))

	switch job.Status {
	case domain.JobCompleted:
		t.log.Info("download completed",
			logger.String("track_id", job.TrackID),
			logger.Bool("heuristic", job.Heuristic))
		t.deps.Sink.Publish(events.Complete(job.TrackID, job.Title()))
	default:
		t.log.Warn("download failed",
			logger.String("track_id", job.TrackID),
			logger.String("reason", job.Error))
		t.deps.Sink.Publish(events.Failed(job.TrackID, job.Title(), job.Error))
	}

	t.record(job)
	if t.deps.Archiver != nil {
		ctx, cancel := context.WithTimeout(t.ctx, persistTimeout)
		if err := t.deps.Archiver.Archive(ctx, job); err != nil {
			t.log.Warn("failed to archive finished job",
				logger.String("track_id", job.TrackID),
				logger.Error(err))
		}
		cancel()
	}

	// Evicted while persisting: drop the record written above.
	if !t.owns(job.TrackID, gen) {
		t.forget(job.TrackID)
	}
}

// owns reports whether trackID is still tracked under generation gen.
func (t *Tracker) owns(trackID string, gen uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tk, ok := t.tasks[trackID]
	return ok && tk.gen == gen
}

func (t *Tracker) scheduleEviction(trackID string, gen uint64, after time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tk, ok := t.tasks[trackID]
	if !ok || tk.gen != gen || t.closed {
		return
	}
	tk.evict = time.AfterFunc(after, func() { t.evict(trackID, gen) })
}

func (t *Tracker) evict(trackID string, gen uint64) {
	t.mu.Lock()
	tk, ok := t.tasks[trackID]
	if !ok || tk.gen != gen {
		t.mu.Unlock()
		return
	}
	tk.cancel()
	delete(t.tasks, trackID)
	delete(t.jobs, trackID)
	t.mu.Unlock()

	t.log.Debug("evicted finished job", logger.String("track_id", trackID))
	t.forget(trackID)
}

// record mirrors job to the recorder, best effort.
func (t *Tracker) record(job domain.Job) {
	if t.deps.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(t.ctx, persistTimeout)
	defer cancel()
	if err := t.deps.Recorder.SaveJob(ctx, job); err != nil {
		t.log.Warn("failed to record job",
			logger.String("track_id", job.TrackID),
			logger.Error(err))
	}
}

func (t *Tracker) forget(trackID string) {
	if t.deps.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(t.ctx, persistTimeout)
	defer cancel()
	if err := t.deps.Recorder.DeleteJob(ctx, trackID); err != nil {
		t.log.Warn("failed to delete recorded job",
			logger.String("track_id", trackID),
			logger.Error(err))
	}
}

package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

// JobSource lists mirrored jobs.
type JobSource interface {
	GetAllJobs(ctx context.Context) ([]domain.Job, error)
}

// JobRestorer takes over jobs loaded from storage.
type JobRestorer interface {
	Restore(jobs []domain.Job) int
}

// JobSyncer resumes tracking of jobs mirrored in Redis on startup
type JobSyncer struct {
	source   JobSource
	restorer JobRestorer
	logger   logger.Logger
}

// NewJobSyncer creates a new job syncer
func NewJobSyncer(source JobSource, restorer JobRestorer, log logger.Logger) *JobSyncer {
	return &JobSyncer{
		source:   source,
		restorer: restorer,
		logger:   log,
	}
}

// Sync loads mirrored jobs and hands them to the tracker
func (js *JobSyncer) Sync(ctx context.Context) error {
	js.logger.Info("restoring jobs from redis")

	jobs, err := js.source.GetAllJobs(ctx)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		js.logger.Info("no jobs found in redis")
		return nil
	}

	restored := js.restorer.Restore(jobs)

	js.logger.Info("restored jobs from redis",
		logger.Int("found", len(jobs)),
		logger.Int("restored", restored))

	return nil
}

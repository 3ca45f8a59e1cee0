package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SaveJob mirrors a job in Redis. The first time a job is saved in a terminal
// state its outcome is counted.
func (s *Store) SaveJob(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, JobKey(job.TrackID), data, DefaultJobTTL)
	pipe.SAdd(ctx, AllJobsKey(), job.TrackID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	if job.Status.IsTerminal() {
		if err := s.countOutcome(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// GetJob retrieves a mirrored job by track ID
func (s *Store) GetJob(ctx context.Context, trackID string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, JobKey(trackID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, trackID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// GetAllJobs retrieves every mirrored job. Index entries whose job expired
// are removed from the set.
func (s *Store) GetAllJobs(ctx context.Context) ([]domain.Job, error) {
	ids, err := s.client.SMembers(ctx, AllJobsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job IDs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.client.SRem(ctx, AllJobsKey(), id)
			}
			continue
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

// DeleteJob removes a mirrored job
func (s *Store) DeleteJob(ctx context.Context, trackID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, JobKey(trackID))
	pipe.SRem(ctx, AllJobsKey(), trackID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
)

// countOutcome increments the counter for the job's terminal status once per submission.
func (s *Store) countOutcome(ctx context.Context, job domain.Job) error {
	first, err := s.client.SetNX(ctx, CountedKey(job.TrackID, job.QueueID), 1, DefaultCountedTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to mark outcome: %w", err)
	}
	if !first {
		return nil
	}

	field := string(job.Status)
	if job.Heuristic {
		field += "_heuristic"
	}
	if err := s.client.HIncrBy(ctx, KeyOutcomes, field, 1).Err(); err != nil {
		return fmt.Errorf("failed to count outcome: %w", err)
	}
	return nil
}

// GetOutcomeStats returns terminal job counts keyed by status
func (s *Store) GetOutcomeStats(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, KeyOutcomes).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome stats: %w", err)
	}

	stats := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		stats[k] = n
	}
	return stats, nil
}

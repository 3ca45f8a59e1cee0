package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultJobTTL bounds how long a mirrored job survives without updates (48 hours)
	DefaultJobTTL = 48 * time.Hour
	// DefaultCountedTTL is how long an outcome marker is kept (24 hours)
	DefaultCountedTTL = 24 * time.Hour
)

// Store handles Redis operations for jobs, settings and outcome stats
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Ping checks that Redis answers
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

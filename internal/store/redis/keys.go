package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixJob is the prefix for mirrored job keys
	KeyPrefixJob = "dlbridge:job:"
	// KeyAllJobs is the key for the set of all mirrored track IDs
	KeyAllJobs = "dlbridge:jobs:all"
	// KeySettings holds the user settings document
	KeySettings = "dlbridge:settings"
	// KeyOutcomes is the hash of terminal job counts per status
	KeyOutcomes = "dlbridge:stats:outcomes"
	// KeyPrefixCounted marks a job whose outcome was already counted
	KeyPrefixCounted = "dlbridge:stats:counted:"
)

// JobKey returns the Redis key for a job by track ID
func JobKey(trackID string) string {
	return KeyPrefixJob + trackID
}

// AllJobsKey returns the key for the set of all track IDs
func AllJobsKey() string {
	return KeyAllJobs
}

// CountedKey returns the marker key for one submission of a track
func CountedKey(trackID, queueID string) string {
	return KeyPrefixCounted + trackID + ":" + queueID
}

// ExtractTrackID extracts the track ID from a job key
func ExtractTrackID(key string) (string, error) {
	if !strings.HasPrefix(key, KeyPrefixJob) || len(key) == len(KeyPrefixJob) {
		return "", fmt.Errorf("invalid job key: %s", key)
	}
	return key[len(KeyPrefixJob):], nil
}

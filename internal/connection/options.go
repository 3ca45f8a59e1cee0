package connection

import "time"

// DefaultFallbackPorts are tried in order when the configured port never answered.
var DefaultFallbackPorts = []int{8337, 1338, 1339, 7777}

// Options configures discovery and retry policy.
type Options struct {
	// FallbackPorts are probed in order before the first successful connection.
	FallbackPorts []int

	// RetryBase is the backoff unit: attempt n waits RetryBase * 2^n.
	// Default: 1s
	RetryBase time.Duration

	// RetryMax caps the exponential backoff.
	// Default: 30s
	RetryMax time.Duration

	// SlowRetryAfter is the attempt count from which SlowRetry applies.
	// Default: 5
	SlowRetryAfter int

	// SlowRetry is the fixed delay once SlowRetryAfter attempts failed.
	// Default: 2m
	SlowRetry time.Duration
}

// DefaultOptions returns the standard discovery policy.
func DefaultOptions() Options {
	return Options{
		FallbackPorts:  append([]int(nil), DefaultFallbackPorts...),
		RetryBase:      time.Second,
		RetryMax:       30 * time.Second,
		SlowRetryAfter: 5,
		SlowRetry:      2 * time.Minute,
	}
}

// RetryDelay returns how long to wait after the given number of consecutive failures.
func (o Options) RetryDelay(attempt int) time.Duration {
	if attempt >= o.SlowRetryAfter {
		return o.SlowRetry
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := o.RetryBase << uint(attempt)
	if delay > o.RetryMax || delay <= 0 {
		return o.RetryMax
	}
	return delay
}

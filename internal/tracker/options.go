package tracker

import (
	"math"
	"time"
)

// Options holds the polling policy. The thresholds come from observed service
// behavior and are kept configurable rather than hard-coded.
type Options struct {
	// InitialDelay before the first poll of a new job.
	// Default: 1s
	InitialDelay time.Duration

	// PollInterval between successful polls.
	// Default: 2s
	PollInterval time.Duration

	// ErrorBackoffBase, ErrorBackoffFactor and ErrorBackoffMax shape the delay
	// after the n-th failed poll: min(base * factor^n, max).
	// Defaults: 2s, 1.5, 30s
	ErrorBackoffBase   time.Duration
	ErrorBackoffFactor float64
	ErrorBackoffMax    time.Duration

	// MaxPollFailures failed polls mark the job failed with "Connection lost".
	// Default: 5
	MaxPollFailures int

	// MaxMissingPolls consecutive polls without the job in the queue listing
	// mark it completed (the service dropped a finished job).
	// Default: 5
	MaxMissingPolls int

	// ProgressStep emits a progress event whenever progress is a multiple of it.
	// Zero disables the heartbeat, leaving only status changes.
	// Default: 10
	ProgressStep int

	// Retention keeps terminal jobs visible in snapshots before eviction.
	// Default: 60s
	Retention time.Duration

	// CancelSupported enables Cancel; the service must implement DELETE /queue/{id}.
	CancelSupported bool
}

// DefaultOptions returns the standard polling policy.
func DefaultOptions() Options {
	return Options{
		InitialDelay:       time.Second,
		PollInterval:       2 * time.Second,
		ErrorBackoffBase:   2 * time.Second,
		ErrorBackoffFactor: 1.5,
		ErrorBackoffMax:    30 * time.Second,
		MaxPollFailures:    5,
		MaxMissingPolls:    5,
		ProgressStep:       10,
		Retention:          time.Minute,
	}
}

// ErrorBackoff returns the delay before the next poll after n failed polls.
func (o Options) ErrorBackoff(n int) time.Duration {
	d := float64(o.ErrorBackoffBase) * math.Pow(o.ErrorBackoffFactor, float64(n))
	if d > float64(o.ErrorBackoffMax) {
		return o.ErrorBackoffMax
	}
	return time.Duration(d)
}

// heartbeat reports whether progress alone warrants an event.
func (o Options) heartbeat(progress int) bool {
	return o.ProgressStep > 0 && progress%o.ProgressStep == 0
}

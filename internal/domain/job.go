package domain

import "time"

// Terminal failure reasons set by the tracker itself.
const (
	ReasonConnectionLost = "Connection lost"
	ReasonCancelled      = "Cancelled"
)

// Job is one tracked download submission, keyed by TrackID.
//
// Jobs are owned by the tracker. Everything handed out to other
// components is a copy obtained through Clone.
type Job struct {
	TrackID      string         `json:"trackId"`
	QueueID      string         `json:"queueId"`
	Quality      string         `json:"quality"`
	Status       JobStatus      `json:"status"`
	Progress     int            `json:"progress"`
	Position     int            `json:"position"`
	Error        string         `json:"error,omitempty"`
	Heuristic    bool           `json:"heuristic,omitempty"`
	PollFailures int            `json:"pollFailureCount"`
	MissingCount int            `json:"missingCount"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	FinishedAt   time.Time      `json:"finishedAt,omitempty"`
}

// Clone returns a copy safe to hand to readers. Metadata values are
// treated as immutable, only the map itself is copied.
func (j *Job) Clone() Job {
	c := *j
	if j.Metadata != nil {
		c.Metadata = make(map[string]any, len(j.Metadata))
		for k, v := range j.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// Title returns the human readable name of the job, falling back to the track id.
func (j *Job) Title() string {
	if t, ok := j.Metadata["title"].(string); ok && t != "" {
		return t
	}
	return j.TrackID
}

// ClampProgress bounds a reported progress value to 0..100.
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

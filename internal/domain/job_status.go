package domain

import "strings"

// JobStatus is the lifecycle state of a submitted download as reported by the service.
type JobStatus string

const (
	// JobQueued means the service accepted the job but has not started it yet.
	JobQueued JobStatus = "queued"

	// JobDownloading means the service is transferring the track.
	JobDownloading JobStatus = "downloading"

	// JobCompleted means the track was downloaded.
	JobCompleted JobStatus = "completed"

	// JobFailed means the service (or the tracker) gave up on the job.
	JobFailed JobStatus = "failed"
)

// ParseJobStatus normalizes a status string reported by the service.
// Unknown values are kept verbatim and treated as non-terminal.
func ParseJobStatus(s string) JobStatus {
	switch v := JobStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case JobQueued, JobDownloading, JobCompleted, JobFailed:
		return v
	case "":
		return JobQueued
	default:
		return v
	}
}

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further polling happens in this state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

package domain

import "errors"

var (
	// ErrInvalidRequest is returned when a submission lacks a track id.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotConnected is returned when the download service cannot be reached on demand.
	ErrNotConnected = errors.New("download service is not available")

	// ErrUnreachable wraps transport level failures (network errors, non-2xx, bad bodies).
	ErrUnreachable = errors.New("download service unreachable")

	// ErrRemoteRejected is returned when the service answers a submission with a non-2xx status.
	ErrRemoteRejected = errors.New("download service rejected the request")

	// ErrAlreadyTracked is returned when a non-terminal job exists for the track id.
	ErrAlreadyTracked = errors.New("track is already being downloaded")

	// ErrNotFound is returned when no job is tracked for the track id.
	ErrNotFound = errors.New("track is not tracked")

	// ErrCancelUnsupported is returned when the service does not support cancellation.
	ErrCancelUnsupported = errors.New("download service does not support cancellation")
)

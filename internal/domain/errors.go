package domain

import "errors"

// Domain errors
var (
	ErrWorkerNotFound     = errors.New("worker not found")
	ErrWorkerNotRunning   = errors.New("worker not running")
	ErrNoHandler          = errors.New("worker has no handler")
	ErrInvalidPattern     = errors.New("invalid filter pattern")
	ErrShutdownInProgress = errors.New("shutdown in progress")
	ErrConfigNotFound     = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeWorkerNotFound     = "WORKER_NOT_FOUND"
	ErrCodeWorkerNotRunning   = "WORKER_NOT_RUNNING"
	ErrCodeInvalidPattern     = "INVALID_PATTERN"
	ErrCodeShutdownInProgress = "SHUTDOWN_IN_PROGRESS"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrWorkerNotFound):
		return ErrCodeWorkerNotFound
	case errors.Is(err, ErrWorkerNotRunning):
		return ErrCodeWorkerNotRunning
	case errors.Is(err, ErrInvalidPattern):
		return ErrCodeInvalidPattern
	case errors.Is(err, ErrShutdownInProgress):
		return ErrCodeShutdownInProgress
	default:
		return "INTERNAL_ERROR"
	}
}

package daemon

import "errors"

var (
	// ErrStateNotFound is returned when no state file exists
	ErrStateNotFound = errors.New("state file not found")
	// ErrAlreadyRunning is returned when a master already runs from the directory
	ErrAlreadyRunning = errors.New("horn is already running")
	// ErrNotRunning is returned when no master is running
	ErrNotRunning = errors.New("horn is not running")
	// ErrPIDFileLocked is returned when the PID file is locked by another process
	ErrPIDFileLocked = errors.New("PID file is locked by another process")
)

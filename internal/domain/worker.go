package domain

import "time"

// WorkerState represents the current state of a worker as seen by the master.
type WorkerState string

const (
	// WorkerStateRunning indicates a child process is believed alive
	WorkerStateRunning WorkerState = "running"
	// WorkerStateStopped indicates no child process is tracked and the worker
	// is waiting to be (re)launched
	WorkerStateStopped WorkerState = "stopped"
)

// String returns the string representation of WorkerState
func (s WorkerState) String() string {
	return string(s)
}

// IsRunning returns true if the worker has a live child process
func (s WorkerState) IsRunning() bool {
	return s == WorkerStateRunning
}

// Liveness describes what the heartbeat file last told the master.
type Liveness string

const (
	// LivenessFresh means the worker has not toggled its heartbeat since launch
	LivenessFresh Liveness = "fresh"
	// LivenessHealthy means the heartbeat changed within the idle timeout
	LivenessHealthy Liveness = "healthy"
	// LivenessStale means the heartbeat is older than the idle timeout
	LivenessStale Liveness = "stale"
	// LivenessUnknown means there is no heartbeat to inspect
	LivenessUnknown Liveness = "unknown"
)

// String returns the string representation of Liveness
func (l Liveness) String() string {
	return string(l)
}

// WorkerInfo is a point-in-time snapshot of a worker
type WorkerInfo struct {
	Name          string        `json:"name"`
	State         WorkerState   `json:"status"`
	PID           int           `json:"pid"`
	StartedAt     time.Time     `json:"started_at,omitempty"`
	Launches      int           `json:"launches"`
	Liveness      Liveness      `json:"liveness"`
	LastHeartbeat time.Time     `json:"last_heartbeat,omitempty"`
	IdleTimeout   time.Duration `json:"idle_timeout"`
	LastExit      string        `json:"last_exit,omitempty"`
}

// UptimeSeconds returns the number of seconds the current child has been running
func (w WorkerInfo) UptimeSeconds() int64 {
	if w.StartedAt.IsZero() || !w.State.IsRunning() {
		return 0
	}
	return int64(time.Since(w.StartedAt).Seconds())
}

// Restarts returns how many times the worker was launched after the first time
func (w WorkerInfo) Restarts() int {
	if w.Launches <= 1 {
		return 0
	}
	return w.Launches - 1
}

package api

import (
	"time"

	"github.com/charliek/horn/internal/domain"
	"github.com/charliek/horn/internal/supervisor"
)

// StatusResponse represents the response for GET /status
type StatusResponse struct {
	Status        string `json:"status"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ConfigFile    string `json:"config_file,omitempty"`
	APIVersion    string `json:"api_version"`
	Workers       int    `json:"workers"`
	Running       int    `json:"running"`
}

// WorkerListResponse represents the response for GET /workers
type WorkerListResponse struct {
	Workers []WorkerResponse `json:"workers"`
}

// WorkerResponse represents a single worker in responses
type WorkerResponse struct {
	Name               string `json:"name"`
	Status             string `json:"status"`
	PID                int    `json:"pid"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
	Launches           int    `json:"launches"`
	Restarts           int    `json:"restarts"`
	Liveness           string `json:"liveness"`
	LastHeartbeat      string `json:"last_heartbeat,omitempty"`
	IdleTimeoutSeconds int64  `json:"idle_timeout_seconds"`
	LastExit           string `json:"last_exit,omitempty"`
}

// LogsResponse represents the response for GET /logs
type LogsResponse struct {
	Logs          []LogEntryResponse `json:"logs"`
	FilteredCount int                `json:"filtered_count"`
	TotalCount    int                `json:"total_count"`
}

// LogEntryResponse represents a single log entry
type LogEntryResponse struct {
	Timestamp string `json:"timestamp"`
	Process   string `json:"process"`
	Level     string `json:"level"`
	Line      string `json:"line"`
}

// EventResponse is one supervisor event on the /events stream
type EventResponse struct {
	Type      string          `json:"type"`
	Worker    string          `json:"worker,omitempty"`
	Timestamp string          `json:"timestamp"`
	Info      *WorkerResponse `json:"info,omitempty"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToWorkerResponse converts domain.WorkerInfo to WorkerResponse
func ToWorkerResponse(info domain.WorkerInfo) WorkerResponse {
	resp := WorkerResponse{
		Name:               info.Name,
		Status:             info.State.String(),
		PID:                info.PID,
		UptimeSeconds:      info.UptimeSeconds(),
		Launches:           info.Launches,
		Restarts:           info.Restarts(),
		Liveness:           info.Liveness.String(),
		IdleTimeoutSeconds: int64(info.IdleTimeout / time.Second),
		LastExit:           info.LastExit,
	}
	if !info.LastHeartbeat.IsZero() {
		resp.LastHeartbeat = info.LastHeartbeat.Format(time.RFC3339Nano)
	}
	return resp
}

// ToLogEntryResponse converts domain.LogEntry to LogEntryResponse
func ToLogEntryResponse(entry domain.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
		Process:   entry.Process,
		Level:     entry.Level.String(),
		Line:      entry.Line,
	}
}

// ToEventResponse converts a supervisor.Event to EventResponse
func ToEventResponse(e supervisor.Event) EventResponse {
	resp := EventResponse{
		Type:      string(e.Type),
		Worker:    e.Worker,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	}
	if e.Worker != "" {
		info := ToWorkerResponse(e.Info)
		resp.Info = &info
	}
	return resp
}

package domain

import "time"

// Level is the severity of a supervisor log entry
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// String returns the string representation of Level
func (l Level) String() string {
	return string(l)
}

// IsError returns true for entries that report a failure
func (l Level) IsError() bool {
	return l == LevelError
}

// LogEntry represents a single log line from the master or a worker
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Process   string    `json:"process"`
	Level     Level     `json:"level"`
	Line      string    `json:"line"`
}

// LogFilter defines criteria for filtering log entries
type LogFilter struct {
	Processes []string // Filter to specific process names
	Pattern   string   // Filter by pattern match
	IsRegex   bool     // If true, Pattern is a regex; otherwise substring match
	ErrorOnly bool     // Only error level entries
}

// IsEmpty returns true if no filters are set
func (f LogFilter) IsEmpty() bool {
	return len(f.Processes) == 0 && f.Pattern == "" && !f.ErrorOnly
}

// MatchesProcess returns true if the process name matches the filter
func (f LogFilter) MatchesProcess(name string) bool {
	if len(f.Processes) == 0 {
		return true
	}
	for _, p := range f.Processes {
		if p == name {
			return true
		}
	}
	return false
}

// LogStats contains statistics about the log buffer
type LogStats struct {
	TotalEntries int
	BufferSize   int
	Subscribers  int
}

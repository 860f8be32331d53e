// Package constants provides shared configuration values used across horn.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "horn.yaml"

	// DefaultAPIHost is the default host for the status API
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the status API
	DefaultAPIPort = 5566

	// DefaultAPIAddress is the default API address for client connections
	DefaultAPIAddress = "http://127.0.0.1:5566"
)

// Supervision timings
const (
	// DefaultIdleTimeout is how long a worker may go without toggling its
	// heartbeat before it is killed
	DefaultIdleTimeout = 60 * time.Second

	// DefaultKillTimeout is the grace period for a graceful quit (SIGQUIT)
	DefaultKillTimeout = 60 * time.Second

	// DefaultReloadTimeout is the grace period used when draining on SIGHUP
	DefaultReloadTimeout = 5 * time.Second

	// DefaultTermTimeout is the grace period used on SIGTERM/SIGINT
	DefaultTermTimeout = 5 * time.Second

	// PollInterval is the sleep between escalation rounds
	PollInterval = 100 * time.Millisecond

	// IdleSleep is the longest the master sleeps waiting for a signal
	IdleSleep = time.Second

	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 30 * time.Second
)

// Worker child environment
const (
	// WorkerEnvVar names the worker a re-executed child should run
	WorkerEnvVar = "HORN_WORKER"

	// MasterPIDEnvVar carries the supervisor pid into the child
	MasterPIDEnvVar = "HORN_MASTER_PID"

	// HeartbeatFD is the descriptor number the heartbeat file is passed on
	HeartbeatFD = 3

	// LogLevelEnvVar overrides the configured log level
	LogLevelEnvVar = "HORN_LOG_LEVEL"
)

// Log configuration
const (
	// MasterProcess is the process name used for supervisor log entries
	MasterProcess = "master"

	// DefaultLogLimit is the default number of log lines to return
	DefaultLogLimit = 100

	// MaxLogLines is the maximum number of log lines that can be requested
	// to prevent memory exhaustion (DoS protection)
	MaxLogLines = 10000

	// DefaultLogBufferSize is the default size for log buffers
	DefaultLogBufferSize = 1000

	// DefaultSubscriptionBuffer is the default size for subscription buffers
	DefaultSubscriptionBuffer = 100

	// ScannerBufferSize is the initial buffer size for command output scanning
	ScannerBufferSize = 64 * 1024 // 64KB

	// ScannerMaxBufferSize is the maximum buffer size for command output scanning
	ScannerMaxBufferSize = 1024 * 1024 // 1MB
)

// ANSI color codes for terminal output
var (
	// ProcessColors are the colors used for process names in terminal output
	ProcessColors = []string{
		"\033[36m", // cyan
		"\033[33m", // yellow
		"\033[32m", // green
		"\033[35m", // magenta
		"\033[34m", // blue
		"\033[31m", // red
	}

	// ColorReset resets the terminal color
	ColorReset = "\033[0m"

	// ColorBrightRed is used for error level output
	ColorBrightRed = "\033[91m"
)

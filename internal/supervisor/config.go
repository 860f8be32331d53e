package supervisor

import (
	"io"
	"log/slog"
	"time"

	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/worker"
)

// Config holds configuration for the supervisor
type Config struct {
	// KillTimeout bounds a graceful shutdown (SIGQUIT). Default: 60s
	KillTimeout time.Duration
	// ReloadTimeout bounds the worker turnover on SIGHUP. Default: 5s
	ReloadTimeout time.Duration
	// TermTimeout bounds a fast shutdown (SIGTERM, SIGINT). Default: 5s
	TermTimeout time.Duration
	// PollInterval is the pause between signalling rounds while razing.
	// Default: 100ms
	PollInterval time.Duration
	// IdleSleep is how long the loop waits when no signal is queued.
	// Default: 1s
	IdleSleep time.Duration

	Logger *slog.Logger
	// Spawner starts worker processes. Default: re-exec of the current binary
	Spawner worker.Spawner
	// TmpDir holds heartbeat files. Default: os.TempDir()
	TmpDir string
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		KillTimeout:   constants.DefaultKillTimeout,
		ReloadTimeout: constants.DefaultReloadTimeout,
		TermTimeout:   constants.DefaultTermTimeout,
		PollInterval:  constants.PollInterval,
		IdleSleep:     constants.IdleSleep,
	}
}

// WithDefaults returns a copy of c with zero fields set to their defaults
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.KillTimeout <= 0 {
		c.KillTimeout = d.KillTimeout
	}
	if c.ReloadTimeout <= 0 {
		c.ReloadTimeout = d.ReloadTimeout
	}
	if c.TermTimeout <= 0 {
		c.TermTimeout = d.TermTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = d.IdleSleep
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

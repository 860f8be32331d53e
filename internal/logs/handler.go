package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/domain"
)

// WorkerKey is the attribute that attributes a record to a worker
const WorkerKey = "worker"

// Format represents the log output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// LoggerConfig holds the logging configuration
type LoggerConfig struct {
	// Level sets the minimum log level (debug, info, warn, error)
	Level string
	// Format sets the output format (text, json)
	Format Format
	// Output is the writer for log output. Default: os.Stderr
	Output io.Writer
}

// NewLogger builds the supervisor logger. Every record goes to cfg.Output and,
// when mgr is non-nil, into mgr's history.
func NewLogger(cfg LoggerConfig, mgr *Manager) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if env := os.Getenv(constants.LogLevelEnvVar); env != "" {
		cfg.Level = env
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var next slog.Handler
	if cfg.Format == FormatJSON {
		next = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		next = slog.NewTextHandler(cfg.Output, opts)
	}

	if mgr == nil {
		return slog.New(next)
	}
	return slog.New(NewHandler(mgr, next))
}

// ParseLevel converts a level name to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Handler is a slog.Handler that records entries into a Manager before
// passing them on.
type Handler struct {
	mgr     *Manager
	next    slog.Handler
	attrs   []slog.Attr
	process string
}

// NewHandler wraps next so that every handled record is also written to mgr
func NewHandler(mgr *Manager, next slog.Handler) *Handler {
	return &Handler{mgr: mgr, next: next, process: constants.MasterProcess}
}

// Enabled defers to the wrapped handler
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle records the entry and forwards the record
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	process := h.process
	var b strings.Builder
	b.WriteString(r.Message)

	appendAttr := func(a slog.Attr) {
		if a.Key == WorkerKey {
			process = a.Value.String()
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	h.mgr.Write(domain.LogEntry{
		Timestamp: r.Time,
		Process:   process,
		Level:     levelOf(r.Level),
		Line:      b.String(),
	})
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler carrying attrs on every record
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == WorkerKey {
			clone.process = a.Value.String()
		}
	}
	clone.next = h.next.WithAttrs(attrs)
	return &clone
}

// WithGroup forwards the group to the wrapped handler; recorded lines stay flat
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}

func levelOf(l slog.Level) domain.Level {
	switch {
	case l >= slog.LevelError:
		return domain.LevelError
	case l >= slog.LevelWarn:
		return domain.LevelWarn
	case l >= slog.LevelInfo:
		return domain.LevelInfo
	default:
		return domain.LevelDebug
	}
}

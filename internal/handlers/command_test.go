package handlers

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/horn/internal/config"
	"github.com/charliek/horn/internal/domain"
	"github.com/charliek/horn/internal/logs"
)

func captureLogger(t *testing.T) (*logs.Manager, func() []domain.LogEntry) {
	t.Helper()
	mgr := logs.NewManager(logs.DefaultManagerConfig())
	t.Cleanup(mgr.Close)
	return mgr, func() []domain.LogEntry {
		entries, _, err := mgr.QueryLast(domain.LogFilter{}, 0)
		require.NoError(t, err)
		return entries
	}
}

func TestCommand_Call(t *testing.T) {
	t.Run("logs stdout and stderr lines", func(t *testing.T) {
		mgr, entries := captureLogger(t)
		c := &Command{
			WorkerName: "echo",
			Cmd:        "echo hello; echo oops >&2",
			Logger:     logs.NewLogger(logs.LoggerConfig{Output: io.Discard}, mgr),
		}

		require.NoError(t, c.Call(context.Background()))

		var out, errOut domain.LogEntry
		for _, e := range entries() {
			switch {
			case strings.HasPrefix(e.Line, "hello"):
				out = e
			case strings.HasPrefix(e.Line, "oops"):
				errOut = e
			}
		}
		assert.Equal(t, domain.LevelInfo, out.Level)
		assert.Contains(t, out.Line, "stream=stdout")
		assert.Equal(t, domain.LevelWarn, errOut.Level)
		assert.Contains(t, errOut.Line, "stream=stderr")
	})

	t.Run("passes environment", func(t *testing.T) {
		mgr, entries := captureLogger(t)
		c := &Command{
			Cmd:    "echo $TEST_VAR",
			Env:    []string{"TEST_VAR=test_value"},
			Logger: logs.NewLogger(logs.LoggerConfig{Output: io.Discard}, mgr),
		}

		require.NoError(t, c.Call(context.Background()))
		require.NotEmpty(t, entries())
		assert.True(t, strings.HasPrefix(entries()[0].Line, "test_value"))
	})

	t.Run("own env wins over inherited", func(t *testing.T) {
		t.Setenv("TEST_VAR", "inherited")
		mgr, entries := captureLogger(t)
		c := &Command{
			Cmd:    "echo $TEST_VAR",
			Env:    []string{"TEST_VAR=configured"},
			Logger: logs.NewLogger(logs.LoggerConfig{Output: io.Discard}, mgr),
		}

		require.NoError(t, c.Call(context.Background()))
		require.NotEmpty(t, entries())
		assert.True(t, strings.HasPrefix(entries()[0].Line, "configured"))
	})

	t.Run("non-zero exit is an error", func(t *testing.T) {
		c := &Command{Cmd: "exit 3"}
		err := c.Call(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 3")
	})

	t.Run("cancel stops the command", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := &Command{Cmd: "sleep 30", StopTimeout: time.Second}

		time.AfterFunc(100*time.Millisecond, cancel)
		start := time.Now()
		err := c.Call(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("waits interval after success", func(t *testing.T) {
		c := &Command{Cmd: "true", Interval: 200 * time.Millisecond}
		start := time.Now()
		require.NoError(t, c.Call(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	})

	t.Run("cancel during interval", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := &Command{Cmd: "true", Interval: time.Hour}
		time.AfterFunc(100*time.Millisecond, cancel)
		assert.ErrorIs(t, c.Call(ctx), context.Canceled)
	})

	t.Run("name", func(t *testing.T) {
		assert.Equal(t, "mailer", (&Command{WorkerName: "mailer"}).Name())
	})
}

func TestFromConfig_CommandOutputNamesWorkerOnce(t *testing.T) {
	cfg, err := config.Parse([]byte("workers:\n  mailer: echo sent\n"))
	require.NoError(t, err)

	mgr, entries := captureLogger(t)
	workers, err := FromConfig(cfg, t.TempDir(), logs.NewLogger(logs.LoggerConfig{Output: io.Discard}, mgr))
	require.NoError(t, err)
	require.NoError(t, workers[0].Handler.Call(context.Background()))

	var sent domain.LogEntry
	for _, e := range entries() {
		if strings.HasPrefix(e.Line, "sent") {
			sent = e
		}
	}
	assert.Equal(t, "mailer", sent.Process)
	assert.Equal(t, 1, strings.Count(sent.Line, "worker=mailer"), sent.Line)
}

// Package handlers provides the worker handlers horn can run from its
// configuration file.
//
// # Security Model
//
// Commands are executed via "sh -c" to support shell features like pipes,
// redirects, and variable expansion. This means configuration files have
// the same trust level as Makefiles or Procfiles - they can execute arbitrary
// code. Only use configuration files from trusted sources.
package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charliek/horn/internal/constants"
)

// Command runs a shell command once per iteration, then waits Interval.
// Output lines are logged through Logger.
type Command struct {
	WorkerName string
	Cmd        string
	// Env holds extra KEY=VALUE pairs; they win over the inherited environment
	Env      []string
	Interval time.Duration
	// StopTimeout is how long a cancelled command gets after SIGTERM before
	// its output is abandoned. Default: 5s
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// Name returns the worker name
func (c *Command) Name() string {
	return c.WorkerName
}

// Call runs the command to completion. A non-zero exit is returned as an
// error, which ends the worker process.
func (c *Command) Call(ctx context.Context) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	stopTimeout := c.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = constants.DefaultTermTimeout
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.Cmd)
	cmd.Env = append(os.Environ(), c.Env...)

	cmd.SysProcAttr = commandProcAttr()
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = stopTimeout

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return fmt.Errorf("starting command: %w", err)
	}
	untrack := track(cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		readOutput(stdoutR, logger, "stdout")
	}()
	go func() {
		defer wg.Done()
		readOutput(stderrR, logger, "stderr")
	}()

	err := cmd.Wait()
	untrack()
	stdoutW.Close()
	stderrW.Close()
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("command %q: %w", c.Cmd, err)
	}

	return pause(ctx, c.Interval)
}

// readOutput logs each line of r until it is closed
func readOutput(r io.ReadCloser, logger *slog.Logger, stream string) {
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, constants.ScannerBufferSize), constants.ScannerMaxBufferSize)
	for scanner.Scan() {
		if stream == "stderr" {
			logger.Warn(scanner.Text(), "stream", stream)
		} else {
			logger.Info(scanner.Text(), "stream", stream)
		}
	}

	// Log any scanner errors (e.g., lines over the maximum length)
	if err := scanner.Err(); err != nil {
		logger.Error("reading command output", "stream", stream, "error", err)
		// keep draining so the command never blocks on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}

// pause waits d or until ctx ends
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

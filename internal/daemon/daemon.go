// Package daemon runs the master in the background and keeps the pid, state
// and token files clients use to find it.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// DaemonEnvVar marks the detached re-executed master
const DaemonEnvVar = "HORN_DAEMON"

// IsDaemonChild returns true if this process is the detached master
func IsDaemonChild() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// Daemonize re-executes the current binary detached from the terminal and
// returns the child's pid. The caller is expected to exit; the child sees
// IsDaemonChild() == true.
func Daemonize(out io.Writer) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("getting executable path: %w", err)
	}

	cmd := exec.Command(executable, os.Args[1:]...)
	cmd.Env = append(os.Environ(), DaemonEnvVar+"=1")
	// New session, no controlling terminal
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting daemon process: %w", err)
	}

	pid := cmd.Process.Pid
	_ = cmd.Process.Release()

	fmt.Fprintf(out, "horn started (pid %d)\n", pid)
	return pid, nil
}

// SetupLogging points stdout and stderr at the daemon log file. Workers
// spawned afterwards inherit it.
func SetupLogging(dir string) (*os.File, error) {
	if err := EnsureStateDir(dir); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(LogPath(dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	os.Stdout = logFile
	os.Stderr = logFile

	return logFile, nil
}

// IsRunning reports whether a master is running from dir.
//
// Best effort: the process could stop between the lock check and loading
// state. Use NewPIDFile for an authoritative answer.
func IsRunning(dir string) bool {
	if IsLocked(PIDPath(dir)) {
		return true
	}

	state, err := LoadState(dir)
	if err != nil {
		return false
	}
	return ProcessExists(state.PID)
}

// GetRunningState returns the state of the running master, or ErrNotRunning
func GetRunningState(dir string) (*State, error) {
	if !IsRunning(dir) {
		return nil, ErrNotRunning
	}
	return LoadState(dir)
}

// CleanupStaleFiles removes state left behind by a master that crashed
func CleanupStaleFiles(dir string) error {
	if IsLocked(PIDPath(dir)) {
		return ErrAlreadyRunning
	}

	state, err := LoadState(dir)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	if ProcessExists(state.PID) {
		return ErrAlreadyRunning
	}
	return CleanupStateDir(dir)
}

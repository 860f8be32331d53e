package worker

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charliek/horn/internal/constants"
)

// Spawner starts the process backing a worker. The heartbeat file must
// arrive in the child as descriptor constants.HeartbeatFD.
type Spawner interface {
	Spawn(name string, heartbeat *os.File, env []string) (pid int, err error)
}

// ExecSpawner starts workers by re-executing a binary, normally the running
// one, with the worker marked in its environment.
type ExecSpawner struct {
	Path   string
	Args   []string
	Stdout *os.File
	Stderr *os.File
}

// NewExecSpawner returns a spawner that re-executes the current binary with
// the current arguments
func NewExecSpawner() (*ExecSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("getting executable path: %w", err)
	}
	return &ExecSpawner{
		Path:   exe,
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}, nil
}

// Spawn starts the child and returns its pid. The child is reaped by the
// supervisor's wait loop, never through the returned process handle.
func (s *ExecSpawner) Spawn(name string, heartbeat *os.File, env []string) (int, error) {
	stdout, stderr := s.Stdout, s.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	proc, err := os.StartProcess(s.Path, s.Args, &os.ProcAttr{
		Env:   childEnv(os.Environ(), env, name, os.Getpid()),
		Files: []*os.File{os.Stdin, stdout, stderr, heartbeat},
	})
	if err != nil {
		return 0, fmt.Errorf("starting worker process: %w", err)
	}

	pid := proc.Pid
	_ = proc.Release()
	return pid, nil
}

// childEnv builds the worker environment: the parent's, minus any stale
// worker markers, plus the worker's own variables and the markers.
func childEnv(base, extra []string, name string, masterPID int) []string {
	env := make([]string, 0, len(base)+len(extra)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, constants.WorkerEnvVar+"=") || strings.HasPrefix(kv, constants.MasterPIDEnvVar+"=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, extra...)
	env = append(env,
		constants.WorkerEnvVar+"="+name,
		constants.MasterPIDEnvVar+"="+strconv.Itoa(masterPID),
	)
	return env
}

// Package worker owns one supervised child process: launching it with a
// fresh heartbeat, judging its liveness, killing it and recording its exit.
// The same package also contains the code that runs inside the child.
package worker

import (
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/domain"
	"github.com/charliek/horn/internal/heartbeat"
	"github.com/charliek/horn/internal/logs"
)

// Config describes a worker
type Config struct {
	// Name identifies the worker. When empty it is taken from a Named
	// handler or factory.
	Name string
	// Handler is called once per iteration. Exactly one of Handler and
	// Factory must be set.
	Handler Handler
	// Factory builds the handler lazily inside the child
	Factory Factory
	// IdleTimeout is how long the heartbeat may stay unchanged.
	// Default: 60s
	IdleTimeout time.Duration
	// Env holds extra KEY=VALUE pairs for the child
	Env []string
}

// Options carries the master-side collaborators of a worker
type Options struct {
	Logger  *slog.Logger
	Spawner Spawner
	// TmpDir holds heartbeat files. Default: os.TempDir()
	TmpDir string
	// Now is the clock used for idle checks. Default: time.Now
	Now func() time.Time
}

// Worker manages one child process. All methods are called from the
// supervisor loop goroutine only.
type Worker struct {
	name        string
	handler     Handler
	factory     Factory
	idleTimeout time.Duration
	env         []string

	logger  *slog.Logger
	spawner Spawner
	tmpDir  string
	now     func() time.Time

	// pid is non-zero exactly when hb is non-nil
	pid int
	hb  *heartbeat.File
	// fresh is set at launch and cleared the first time the heartbeat is
	// seen away from its creation mode
	fresh bool

	startedAt time.Time
	launches  int
	lastBeat  time.Time
	liveness  domain.Liveness
	lastExit  string
}

// New validates cfg and builds a stopped worker
func New(cfg Config, opts Options) (*Worker, error) {
	if (cfg.Handler == nil) == (cfg.Factory == nil) {
		return nil, fmt.Errorf("worker %q: %w", cfg.Name, domain.ErrNoHandler)
	}

	name := cfg.Name
	if name == "" {
		name = nameOf(cfg.Handler, cfg.Factory)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: worker needs a name", domain.ErrInvalidConfig)
	}

	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = constants.DefaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Worker{
		name:        name,
		handler:     cfg.Handler,
		factory:     cfg.Factory,
		idleTimeout: cfg.IdleTimeout,
		env:         cfg.Env,
		logger:      opts.Logger.With(logs.WorkerKey, name),
		spawner:     opts.Spawner,
		tmpDir:      opts.TmpDir,
		now:         opts.Now,
		liveness:    domain.LivenessUnknown,
	}, nil
}

func nameOf(candidates ...any) string {
	for _, c := range candidates {
		if n, ok := c.(Named); ok && n.Name() != "" {
			return n.Name()
		}
	}
	return ""
}

// Name returns the worker name
func (w *Worker) Name() string {
	return w.name
}

// PID returns the tracked child pid, or 0 when none is tracked
func (w *Worker) PID() int {
	return w.pid
}

// Running reports whether a child is believed alive
func (w *Worker) Running() bool {
	return w.pid != 0
}

// Launch starts a new child with a new heartbeat file. It is a no-op while
// a child is tracked. On failure the worker stays stopped and the next
// reconciliation pass tries again.
func (w *Worker) Launch() error {
	if w.pid != 0 {
		return nil
	}
	if w.spawner == nil {
		return fmt.Errorf("launching worker %s: no spawner", w.name)
	}

	hb, err := heartbeat.Create(w.tmpDir)
	if err != nil {
		return fmt.Errorf("launching worker %s: %w", w.name, err)
	}

	pid, err := w.spawner.Spawn(w.name, hb.OSFile(), w.env)
	if err != nil {
		hb.Close()
		return fmt.Errorf("launching worker %s: %w", w.name, err)
	}

	w.pid = pid
	w.hb = hb
	w.fresh = true
	w.startedAt = w.now()
	w.launches++
	w.lastBeat = time.Time{}
	w.liveness = domain.LivenessFresh
	w.logger.Debug("launched", "pid", pid)
	return nil
}

// KillIfIdle SIGKILLs the child when its heartbeat has not changed for
// longer than the idle timeout. A child that has not beaten once since
// launch is left alone. Reports whether a kill was sent.
func (w *Worker) KillIfIdle() bool {
	if w.pid == 0 || w.hb == nil {
		return false
	}

	st, err := w.hb.Stat()
	if err != nil {
		w.logger.Warn("reading heartbeat", "pid", w.pid, "error", err)
		return false
	}

	if w.fresh && st.Mode == w.hb.InitialMode() {
		return false
	}
	w.fresh = false
	w.lastBeat = st.Changed

	diff := w.now().Sub(st.Changed)
	if diff <= w.idleTimeout {
		w.liveness = domain.LivenessHealthy
		return false
	}

	w.liveness = domain.LivenessStale
	w.logger.Error(fmt.Sprintf("PID:%d timeout (%s > %s), killing", w.pid, diff.Round(time.Millisecond), w.idleTimeout),
		"pid", w.pid)
	w.Kill(syscall.SIGKILL)
	return true
}

// Kill sends sig to the child. A child that no longer exists is treated as
// terminated: its state is cleared as if it had been reaped.
func (w *Worker) Kill(sig syscall.Signal) {
	if w.pid == 0 {
		return
	}

	err := unix.Kill(w.pid, sig)
	switch err {
	case nil:
	case unix.ESRCH:
		w.logger.Debug("already gone", "pid", w.pid, "signal", unix.SignalName(sig))
		w.lastExit = "gone"
		w.clear()
	default:
		w.logger.Error("signalling worker", "pid", w.pid, "signal", unix.SignalName(sig), "error", err)
	}
}

// Reap records the exit of the child after the supervisor collected it.
// Exactly one line is logged: info on a clean exit, error otherwise.
func (w *Worker) Reap(status unix.WaitStatus) {
	pid := w.pid
	w.lastExit = describe(status)
	w.clear()

	msg := fmt.Sprintf("reaped %s", w.lastExit)
	if Succeeded(status) {
		w.logger.Info(msg, "pid", pid)
	} else {
		w.logger.Error(msg, "pid", pid)
	}
}

// clear forgets the child and releases the master's end of the heartbeat
func (w *Worker) clear() {
	w.pid = 0
	if w.hb != nil {
		_ = w.hb.Close()
		w.hb = nil
	}
	w.fresh = false
	w.liveness = domain.LivenessUnknown
}

// Info returns a snapshot for status reporting
func (w *Worker) Info() domain.WorkerInfo {
	info := domain.WorkerInfo{
		Name:          w.name,
		State:         domain.WorkerStateStopped,
		PID:           w.pid,
		Launches:      w.launches,
		Liveness:      w.liveness,
		LastHeartbeat: w.lastBeat,
		IdleTimeout:   w.idleTimeout,
		LastExit:      w.lastExit,
	}
	if w.pid != 0 {
		info.State = domain.WorkerStateRunning
		info.StartedAt = w.startedAt
	}
	return info
}

// Succeeded reports whether a wait status is a clean exit
func Succeeded(status unix.WaitStatus) bool {
	return status.Exited() && status.ExitStatus() == 0
}

func describe(status unix.WaitStatus) string {
	switch {
	case status.Exited():
		return fmt.Sprintf("exit %d", status.ExitStatus())
	case status.Signaled():
		return "signal " + unix.SignalName(status.Signal())
	default:
		return fmt.Sprintf("status %#x", uint32(status))
	}
}

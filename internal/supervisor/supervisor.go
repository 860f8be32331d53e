// Package supervisor runs the master side of a pre-fork worker pool: one
// reconciliation loop that reaps exited children, relaunches missing ones,
// kills hung ones and shuts everything down on signal with escalating force.
//
// All worker state belongs to the loop goroutine. Other goroutines (signal
// forwarding, the control API, the config watcher) influence the loop only by
// queueing a signal, and observe it only through the snapshot published at
// the end of each iteration.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/charliek/horn/internal/domain"
	"github.com/charliek/horn/internal/selfpipe"
	"github.com/charliek/horn/internal/worker"
)

// Supervisor states
const (
	StateStopped  = "stopped"
	StateRunning  = "running"
	StateStopping = "stopping"
)

// Supervisor manages a fixed set of workers
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	loop   *selfpipe.Loop

	// workers is owned by the loop goroutine
	workers []*worker.Worker

	// mu guards the published view below
	mu        sync.RWMutex
	snapshot  []domain.WorkerInfo
	state     string
	startedAt time.Time
	ran       bool

	// eventMu protects eventSubs from concurrent access
	eventMu sync.RWMutex
	// eventSubs holds channels for subscribers to supervisor events
	eventSubs []chan Event
}

// Event represents a supervisor event
type Event struct {
	Type      EventType
	Worker    string
	Timestamp time.Time
	Info      domain.WorkerInfo
}

// EventType defines the type of supervisor event
type EventType string

const (
	EventTypeWorkerLaunched  EventType = "worker_launched"
	EventTypeWorkerExited    EventType = "worker_exited"
	EventTypeWorkerIdle      EventType = "worker_idle_killed"
	EventTypeSupervisorStart EventType = "supervisor_start"
	EventTypeSupervisorStop  EventType = "supervisor_stop"
)

// New builds a supervisor for the given workers. The same supervisor must be
// built in the master and in every worker process; Run picks the role.
func New(cfg Config, workers []worker.Config) (*Supervisor, error) {
	cfg = cfg.WithDefaults()

	if len(workers) == 0 {
		return nil, fmt.Errorf("%w: no workers configured", domain.ErrInvalidConfig)
	}

	if cfg.Spawner == nil && !worker.IsChild() {
		sp, err := worker.NewExecSpawner()
		if err != nil {
			return nil, err
		}
		cfg.Spawner = sp
	}

	s := &Supervisor{
		cfg:    cfg,
		logger: cfg.Logger,
		state:  StateStopped,
	}

	seen := make(map[string]bool, len(workers))
	opts := worker.Options{
		Logger:  cfg.Logger,
		Spawner: cfg.Spawner,
		TmpDir:  cfg.TmpDir,
	}
	for _, wc := range workers {
		w, err := worker.New(wc, opts)
		if err != nil {
			return nil, err
		}
		if seen[w.Name()] {
			return nil, fmt.Errorf("%w: duplicate worker %q", domain.ErrInvalidConfig, w.Name())
		}
		seen[w.Name()] = true
		s.workers = append(s.workers, w)
	}

	loop, err := selfpipe.New()
	if err != nil {
		return nil, err
	}
	s.loop = loop

	// a worker process must not act on the master's signals or workers
	worker.AfterFork(func() {
		s.workers = nil
		s.loop.Forget()
	})

	s.publish()
	return s, nil
}

// Run runs the supervisor until it is told to stop. In a worker process it
// runs that worker instead and exits the process when the worker is done.
//
// Cancelling ctx is equivalent to SIGTERM.
func (s *Supervisor) Run(ctx context.Context) error {
	if worker.IsChild() {
		name := worker.ChildName()
		w := s.find(name)
		if w == nil {
			return fmt.Errorf("%w: %s", domain.ErrWorkerNotFound, name)
		}
		os.Exit(w.RunChild(ctx))
	}

	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already ran")
	}
	s.ran = true
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.loop.Register(syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM, syscall.SIGCHLD, syscall.SIGHUP)
	defer s.loop.Forget()

	stop := context.AfterFunc(ctx, func() {
		s.loop.Inject(syscall.SIGTERM)
	})
	defer stop()

	s.emit(Event{Type: EventTypeSupervisorStart, Timestamp: time.Now()})

	if err := s.launchMissing(); err != nil {
		s.logger.Error("launching workers", "error", err)
	}
	s.publish()
	s.logger.Info("master process ready", "pid", os.Getpid())

	for {
		done := s.iterate()
		s.publish()
		if done {
			break
		}
	}

	s.setState(StateStopped)
	s.publish()
	s.emit(Event{Type: EventTypeSupervisorStop, Timestamp: time.Now()})
	s.logger.Info("master complete")
	return nil
}

// iterate runs one reconciliation pass and reports whether the loop should
// end. Failures are logged and never end the loop.
func (s *Supervisor) iterate() (done bool) {
	defer func() {
		if r := recover(); r != nil {
			s.loopFailed(fmt.Errorf("panic: %v", r))
			done = false
		}
	}()

	s.reap()

	sig, ok := s.loop.Next()
	if !ok {
		if err := s.maintain(); err != nil {
			s.loopFailed(err)
		}
		return false
	}
	return s.dispatch(sig)
}

func (s *Supervisor) loopFailed(err error) {
	loopErrors.Inc()
	s.logger.Error(err.Error(), "stack", string(debug.Stack()))
}

// maintain is the idle path: kill hung workers, start missing ones, then
// wait for a signal or the idle sleep.
func (s *Supervisor) maintain() error {
	for _, w := range s.workers {
		if w.KillIfIdle() {
			workerIdleKills.WithLabelValues(w.Name()).Inc()
			s.emit(Event{Type: EventTypeWorkerIdle, Worker: w.Name(), Timestamp: time.Now(), Info: w.Info()})
		}
	}
	err := s.launchMissing()
	s.loop.Sleep(s.cfg.IdleSleep)
	return err
}

func (s *Supervisor) launchMissing() error {
	var errs []error
	for _, w := range s.workers {
		if w.Running() {
			continue
		}
		if err := w.Launch(); err != nil {
			errs = append(errs, err)
			continue
		}
		workerLaunches.WithLabelValues(w.Name()).Inc()
		s.emit(Event{Type: EventTypeWorkerLaunched, Worker: w.Name(), Timestamp: time.Now(), Info: w.Info()})
	}
	return errors.Join(errs...)
}

func (s *Supervisor) dispatch(sig os.Signal) bool {
	signalsHandled.WithLabelValues(signalName(sig)).Inc()

	switch sig {
	case syscall.SIGCHLD:
		return false
	case syscall.SIGHUP:
		s.logger.Info("reloading workers")
		s.raze(syscall.SIGQUIT, s.cfg.ReloadTimeout)
		return false
	case syscall.SIGQUIT:
		s.logger.Info("graceful shutdown")
		s.shutdown(syscall.SIGQUIT, s.cfg.KillTimeout)
		return true
	case syscall.SIGTERM, syscall.SIGINT:
		s.logger.Info("shutting down", "signal", signalName(sig))
		s.shutdown(syscall.SIGTERM, s.cfg.TermTimeout)
		return true
	default:
		s.logger.Warn("ignoring signal", "signal", signalName(sig))
		return false
	}
}

func (s *Supervisor) shutdown(sig syscall.Signal, timeout time.Duration) {
	s.setState(StateStopping)
	s.publish()
	s.raze(sig, timeout)

	// collect whatever the final SIGKILL left behind
	if s.anyRunning() {
		time.Sleep(s.cfg.PollInterval)
		s.reap()
	}
}

// raze signals every live worker until all are gone or timeout passes, then
// SIGKILLs the rest. Killed stragglers are reaped by a later pass.
func (s *Supervisor) raze(sig syscall.Signal, timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	for s.anyRunning() && time.Now().Before(deadline) {
		for _, w := range s.workers {
			w.Kill(sig)
		}
		time.Sleep(s.cfg.PollInterval)
		s.reap()
	}

	for _, w := range s.workers {
		if w.Running() {
			s.logger.Error("worker did not stop in time, killing", "worker", w.Name(), "pid", w.PID(), "timeout", timeout)
			w.Kill(syscall.SIGKILL)
		}
	}
}

// reap collects every exited child without blocking
func (s *Supervisor) reap() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			return
		case err != nil:
			s.logger.Error("waiting for workers", "error", err)
			return
		case pid <= 0:
			return
		}

		w := s.byPID(pid)
		if w == nil {
			s.logger.Debug("reaped unknown child", "pid", pid)
			continue
		}
		w.Reap(status)
		recordReap(w.Name(), worker.Succeeded(status))
		s.emit(Event{Type: EventTypeWorkerExited, Worker: w.Name(), Timestamp: time.Now(), Info: w.Info()})
	}
}

func (s *Supervisor) anyRunning() bool {
	for _, w := range s.workers {
		if w.Running() {
			return true
		}
	}
	return false
}

func (s *Supervisor) byPID(pid int) *worker.Worker {
	for _, w := range s.workers {
		if w.PID() == pid {
			return w
		}
	}
	return nil
}

func (s *Supervisor) find(name string) *worker.Worker {
	for _, w := range s.workers {
		if w.Name() == name {
			return w
		}
	}
	return nil
}

// publish copies worker state for readers outside the loop goroutine
func (s *Supervisor) publish() {
	infos := make([]domain.WorkerInfo, 0, len(s.workers))
	running := 0
	for _, w := range s.workers {
		info := w.Info()
		if info.State.IsRunning() {
			running++
		}
		infos = append(infos, info)
	}

	s.mu.Lock()
	s.snapshot = infos
	s.mu.Unlock()
	workersRunning.Set(float64(running))
}

func (s *Supervisor) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Workers returns info for all workers in supervisor order
func (s *Supervisor) Workers() []domain.WorkerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WorkerInfo(nil), s.snapshot...)
}

// Worker returns info for a specific worker
func (s *Supervisor) Worker(name string) (domain.WorkerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, info := range s.snapshot {
		if info.Name == name {
			return info, nil
		}
	}
	return domain.WorkerInfo{}, domain.ErrWorkerNotFound
}

// Status returns supervisor status
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:     s.state,
		PID:       os.Getpid(),
		StartedAt: s.startedAt,
	}
	for _, info := range s.snapshot {
		st.Workers++
		if info.State.IsRunning() {
			st.Running++
		}
	}
	return st
}

// Status holds supervisor status information
type Status struct {
	State     string
	PID       int
	StartedAt time.Time
	Workers   int
	Running   int
}

// UptimeSeconds returns seconds since the supervisor started
func (st Status) UptimeSeconds() int64 {
	if st.StartedAt.IsZero() || st.State == StateStopped {
		return 0
	}
	return int64(time.Since(st.StartedAt).Seconds())
}

// Inject queues sig for the loop as if the master had received it
func (s *Supervisor) Inject(sig os.Signal) {
	s.loop.Inject(sig)
}

// Shutdown asks the loop to stop: gracefully (SIGQUIT) or fast (SIGTERM)
func (s *Supervisor) Shutdown(graceful bool) error {
	if err := s.requireRunning(); err != nil {
		return err
	}
	if graceful {
		s.loop.Inject(syscall.SIGQUIT)
	} else {
		s.loop.Inject(syscall.SIGTERM)
	}
	return nil
}

// Reload asks the loop to replace every worker process (SIGHUP)
func (s *Supervisor) Reload() error {
	if err := s.requireRunning(); err != nil {
		return err
	}
	s.loop.Inject(syscall.SIGHUP)
	return nil
}

func (s *Supervisor) requireRunning() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateRunning {
		return domain.ErrShutdownInProgress
	}
	return nil
}

// Subscribe creates a channel for receiving supervisor events
func (s *Supervisor) Subscribe() <-chan Event {
	ch := make(chan Event, 100)

	s.eventMu.Lock()
	s.eventSubs = append(s.eventSubs, ch)
	s.eventMu.Unlock()

	return ch
}

// Unsubscribe stops delivery to a channel returned by Subscribe and closes it
func (s *Supervisor) Unsubscribe(ch <-chan Event) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	for i, sub := range s.eventSubs {
		if sub == ch {
			s.eventSubs = append(s.eventSubs[:i], s.eventSubs[i+1:]...)
			close(sub)
			return
		}
	}
}

// emit sends an event to all subscribers
func (s *Supervisor) emit(event Event) {
	s.eventMu.RLock()
	defer s.eventMu.RUnlock()

	for _, ch := range s.eventSubs {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

func signalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}

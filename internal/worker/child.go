package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/heartbeat"
)

// IsChild reports whether this process was started as a worker
func IsChild() bool {
	return os.Getenv(constants.WorkerEnvVar) != ""
}

// ChildName returns the name of the worker this process should run
func ChildName() string {
	return os.Getenv(constants.WorkerEnvVar)
}

// RunChild is the body of a worker process. It returns the exit code; the
// caller is expected to exit with it.
//
// SIGTERM and SIGINT exit 0 at once, running only the terminate hooks.
// SIGQUIT cancels the handler's context and ends the loop after the current
// call.
func (w *Worker) RunChild(ctx context.Context) int {
	masterPID, err := strconv.Atoi(os.Getenv(constants.MasterPIDEnvVar))
	if err != nil {
		w.logger.Error("invalid master pid", "value", os.Getenv(constants.MasterPIDEnvVar))
		return 1
	}

	hb, err := heartbeat.Open(constants.HeartbeatFD)
	if err != nil {
		w.logger.Error("opening heartbeat", "error", err)
		return 1
	}
	defer hb.Close()

	TrapSignals()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-quitCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	RunAfterForkHooks()

	w.logger.Info("ready", "pid", os.Getpid())
	return w.serve(ctx, hb, masterPID)
}

// serve toggles the heartbeat and calls the handler until the master goes
// away, the heartbeat becomes unusable, the context ends or the handler
// stops the loop.
func (w *Worker) serve(ctx context.Context, hb *heartbeat.File, masterPID int) int {
	handler := w.handler

	for os.Getppid() == masterPID && hb.Valid() && ctx.Err() == nil {
		if err := hb.Toggle(); err != nil {
			break
		}

		if handler == nil {
			h, err := w.factory.New()
			if err != nil {
				w.logger.Error("building handler", "error", err)
				return 1
			}
			handler = h
		}

		if err := call(ctx, handler); err != nil {
			switch {
			case errors.Is(err, ErrDone):
				return 0
			case ctx.Err() != nil && errors.Is(err, context.Canceled):
				return 0
			default:
				w.logger.Error("handler failed", "error", err)
				return 1
			}
		}
	}
	return 0
}

// call runs one handler iteration, turning a panic into an error
func call(ctx context.Context, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h.Call(ctx)
}

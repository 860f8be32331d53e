package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/heartbeat"
)

func newChildWorker(t *testing.T, h Handler) (*Worker, *heartbeat.File) {
	t.Helper()
	w, err := New(Config{Name: "child", Handler: h}, Options{})
	require.NoError(t, err)

	hb, err := heartbeat.Create(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { hb.Close() })
	return w, hb
}

func TestServe_DoneStopsCleanly(t *testing.T) {
	var calls int32
	w, hb := newChildWorker(t, HandlerFunc(func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 3 {
			return ErrDone
		}
		return nil
	}))

	code := w.serve(context.Background(), hb, os.Getppid())
	assert.Equal(t, 0, code)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	st, err := hb.Stat()
	require.NoError(t, err)
	assert.NotEqual(t, hb.InitialMode(), st.Mode, "heartbeat toggled before each call")
}

func TestServe_WrappedDone(t *testing.T) {
	w, hb := newChildWorker(t, HandlerFunc(func(ctx context.Context) error {
		return errors.Join(errors.New("queue drained"), ErrDone)
	}))
	assert.Equal(t, 0, w.serve(context.Background(), hb, os.Getppid()))
}

func TestServe_HandlerErrorExitsOne(t *testing.T) {
	w, hb := newChildWorker(t, HandlerFunc(func(ctx context.Context) error {
		return errors.New("boom")
	}))
	assert.Equal(t, 1, w.serve(context.Background(), hb, os.Getppid()))
}

func TestServe_PanicExitsOne(t *testing.T) {
	w, hb := newChildWorker(t, HandlerFunc(func(ctx context.Context) error {
		panic("handler exploded")
	}))
	assert.NotPanics(t, func() {
		assert.Equal(t, 1, w.serve(context.Background(), hb, os.Getppid()))
	})
}

func TestServe_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	w, hb := newChildWorker(t, HandlerFunc(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}))

	assert.Equal(t, 0, w.serve(ctx, hb, os.Getppid()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestServe_OrphanedWorkerStops(t *testing.T) {
	var called atomic.Bool
	w, hb := newChildWorker(t, HandlerFunc(func(ctx context.Context) error {
		called.Store(true)
		return nil
	}))

	assert.Equal(t, 0, w.serve(context.Background(), hb, os.Getppid()+1))
	assert.False(t, called.Load(), "handler must not run once the master is gone")
}

func TestServe_ClosedHeartbeatStops(t *testing.T) {
	var called atomic.Bool
	w, hb := newChildWorker(t, HandlerFunc(func(ctx context.Context) error {
		called.Store(true)
		return nil
	}))
	require.NoError(t, hb.Close())

	assert.Equal(t, 0, w.serve(context.Background(), hb, os.Getppid()))
	assert.False(t, called.Load())
}

func TestServe_FactoryBuildsOnce(t *testing.T) {
	var built, calls int
	factory := FactoryFunc(func() (Handler, error) {
		built++
		return HandlerFunc(func(ctx context.Context) error {
			calls++
			if calls == 5 {
				return ErrDone
			}
			return nil
		}), nil
	})
	w, err := New(Config{Name: "lazy", Factory: factory}, Options{})
	require.NoError(t, err)
	hb, err := heartbeat.Create(t.TempDir())
	require.NoError(t, err)
	defer hb.Close()

	assert.Equal(t, 0, w.serve(context.Background(), hb, os.Getppid()))
	assert.Equal(t, 1, built)
	assert.Equal(t, 5, calls)
}

func TestServe_FactoryError(t *testing.T) {
	factory := FactoryFunc(func() (Handler, error) {
		return nil, errors.New("no database")
	})
	w, err := New(Config{Name: "lazy", Factory: factory}, Options{})
	require.NoError(t, err)
	hb, err := heartbeat.Create(t.TempDir())
	require.NoError(t, err)
	defer hb.Close()

	assert.Equal(t, 1, w.serve(context.Background(), hb, os.Getppid()))
}

func TestCall_RecoversPanicWithStack(t *testing.T) {
	err := call(context.Background(), HandlerFunc(func(ctx context.Context) error {
		panic("nope")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: nope")
	assert.Contains(t, err.Error(), "goroutine")
}

func TestRunChild_BadMasterPID(t *testing.T) {
	t.Setenv(constants.MasterPIDEnvVar, "not-a-pid")
	w, err := New(Config{Name: "child", Handler: noop}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, w.RunChild(context.Background()))
}

func TestIsChild(t *testing.T) {
	t.Setenv(constants.WorkerEnvVar, "")
	assert.False(t, IsChild())

	t.Setenv(constants.WorkerEnvVar, "mailer")
	assert.True(t, IsChild())
	assert.Equal(t, "mailer", ChildName())
}

func TestAfterForkHooks(t *testing.T) {
	var order []int
	AfterFork(func() { order = append(order, 1) })
	AfterFork(func() { order = append(order, 2) })

	RunAfterForkHooks()
	assert.Equal(t, []int{1, 2}, order)

	// hooks run once
	RunAfterForkHooks()
	assert.Equal(t, []int{1, 2}, order)
}

func TestChildEnv(t *testing.T) {
	base := []string{
		"PATH=/usr/bin",
		constants.WorkerEnvVar + "=stale",
		constants.MasterPIDEnvVar + "=1",
	}
	env := childEnv(base, []string{"QUEUE=mail"}, "mailer", 4242)

	assert.Contains(t, env, "PATH=/usr/bin")
	assert.Contains(t, env, "QUEUE=mail")
	assert.Contains(t, env, constants.WorkerEnvVar+"=mailer")
	assert.Contains(t, env, constants.MasterPIDEnvVar+"=4242")

	var markers int
	for _, kv := range env {
		if strings.HasPrefix(kv, constants.WorkerEnvVar+"=") {
			markers++
		}
	}
	assert.Equal(t, 1, markers)
}

func TestExecSpawner_PassesHeartbeatAndMarkers(t *testing.T) {
	hb, err := heartbeat.Create(t.TempDir())
	require.NoError(t, err)
	defer hb.Close()

	script := `test -e /proc/self/fd/3 && test "$HORN_WORKER" = probe && test "$QUEUE" = mail`
	sp := &ExecSpawner{Path: "/bin/sh", Args: []string{"/bin/sh", "-c", script}}

	pid, err := sp.Spawn("probe", hb.OSFile(), []string{"QUEUE=mail"})
	require.NoError(t, err)
	require.Positive(t, pid)

	status := waitFor(t, pid)
	assert.True(t, Succeeded(status), "child saw %v", status)
	assert.True(t, hb.Valid())
}

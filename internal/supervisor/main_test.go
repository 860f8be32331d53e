package supervisor

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charliek/horn/internal/worker"
)

// TestMain doubles as the worker entry point: the supervisor re-executes the
// test binary, which lands here with the worker marker set.
func TestMain(m *testing.M) {
	if worker.IsChild() {
		name := worker.ChildName()
		s, err := New(Config{}, []worker.Config{{Name: name, Handler: handlerFor(name)}})
		if err != nil {
			os.Exit(2)
		}
		_ = s.Run(context.Background())
		os.Exit(2)
	}
	os.Exit(m.Run())
}

// handlerFor picks the test behaviour by worker name prefix
func handlerFor(name string) worker.Handler {
	switch {
	case strings.HasPrefix(name, "hung"):
		return worker.HandlerFunc(hang)
	case strings.HasPrefix(name, "crasher"):
		return worker.HandlerFunc(crash)
	default:
		return worker.HandlerFunc(tick)
	}
}

func tick(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// hang never returns and ignores cancellation
func hang(ctx context.Context) error {
	time.Sleep(time.Hour)
	return nil
}

func crash(ctx context.Context) error {
	time.Sleep(200 * time.Millisecond)
	return errors.New("crashed on purpose")
}

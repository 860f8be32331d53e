package handlers

import (
	"context"
	"time"

	"github.com/charliek/horn/internal/worker"
)

// Sleep is a handler that does nothing for D per iteration
type Sleep struct {
	WorkerName string
	D          time.Duration
}

// Name returns the worker name
func (s *Sleep) Name() string {
	return s.WorkerName
}

// Call sleeps D or until ctx ends
func (s *Sleep) Call(ctx context.Context) error {
	return pause(ctx, s.D)
}

// Recycle wraps h so the worker process ends cleanly after n successful
// iterations and the master starts a fresh one. n <= 0 returns h unchanged.
func Recycle(h worker.Handler, n int) worker.Handler {
	if n <= 0 {
		return h
	}
	done := 0
	return worker.HandlerFunc(func(ctx context.Context) error {
		if err := h.Call(ctx); err != nil {
			return err
		}
		done++
		if done >= n {
			return worker.ErrDone
		}
		return nil
	})
}

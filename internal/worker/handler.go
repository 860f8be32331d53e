package worker

import (
	"context"
	"errors"
)

// ErrDone is returned by a Handler to end the worker loop successfully. The
// child exits 0 and the master relaunches it on its next pass.
var ErrDone = errors.New("worker done")

// Handler is the unit of work a worker process runs once per iteration
type Handler interface {
	Call(ctx context.Context) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context) error

// Call runs f
func (f HandlerFunc) Call(ctx context.Context) error {
	return f(ctx)
}

// Factory builds a Handler lazily inside the worker process, so anything
// the handler opens (connections, files) is created after the child starts
// and never in the master.
type Factory interface {
	New() (Handler, error)
}

// FactoryFunc adapts a function to Factory
type FactoryFunc func() (Handler, error)

// New calls f
func (f FactoryFunc) New() (Handler, error) {
	return f()
}

// Named is implemented by handlers and factories that know their own name
type Named interface {
	Name() string
}

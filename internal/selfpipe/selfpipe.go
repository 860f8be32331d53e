// Package selfpipe turns asynchronously delivered signals into an ordered
// queue that a single loop goroutine consumes at its own pace.
//
// Delivery does two things only: append the signal to the queue and write a
// byte to a non-blocking pipe. The owner blocks in Sleep on the read end of
// the pipe, so a signal arriving at any moment cuts the sleep short, and then
// drains the queue with Next.
package selfpipe

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// drainSize is how much buffered wake-up data one Sleep discards at most
const drainSize = 16 * 1024

// notifyBuffer bounds signals in flight between the runtime and the forwarder
const notifyBuffer = 64

// Loop is a signal queue with a self-pipe wake-up. Inject and signal
// delivery are safe from any goroutine; Sleep, Next and Forget belong to the
// goroutine that owns the loop.
type Loop struct {
	mu      sync.Mutex
	queue   []os.Signal
	r, w    int
	ch      chan os.Signal
	signals []os.Signal
	closed  bool
}

// New creates the pipe. Both ends are non-blocking and close-on-exec.
func New() (*Loop, error) {
	var fds [2]int

	syscall.ForkLock.RLock()
	err := unix.Pipe(fds[:])
	if err == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("creating self-pipe: %w", err)
	}

	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, fmt.Errorf("setting self-pipe non-blocking: %w", err)
		}
	}

	return &Loop{r: fds[0], w: fds[1]}, nil
}

// Register starts queueing the given signals
func (l *Loop) Register(signals ...os.Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.ch == nil {
		l.ch = make(chan os.Signal, notifyBuffer)
		go l.forward(l.ch)
	}
	l.signals = append(l.signals, signals...)
	signal.Notify(l.ch, signals...)
}

func (l *Loop) forward(ch <-chan os.Signal) {
	for sig := range ch {
		l.Inject(sig)
	}
}

// Inject queues sig as if it had been delivered by the OS
func (l *Loop) Inject(sig os.Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.queue = append(l.queue, sig)
	l.wake()
}

// wake writes one byte to the pipe. A full pipe (EAGAIN) or an interrupted
// write is fine: the queue already holds the signal and the reader is
// already due to wake up. Caller holds mu.
func (l *Loop) wake() {
	for {
		_, err := unix.Write(l.w, []byte{'.'})
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// Sleep blocks until a signal arrives or d elapses, whichever is first. The
// two outcomes are deliberately indistinguishable; callers check Next.
func (l *Loop) Sleep(d time.Duration) {
	l.mu.Lock()
	r, closed := l.r, l.closed
	l.mu.Unlock()

	if closed {
		return
	}

	ms := int(d / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	fds := []unix.PollFd{{Fd: int32(r), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil || n == 0 {
		return
	}

	var buf [drainSize]byte
	for {
		n, err := unix.Read(r, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n < len(buf) {
			return
		}
	}
}

// Next pops the oldest queued signal
func (l *Loop) Next() (os.Signal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	sig := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return sig, true
}

// Pending returns the number of queued signals
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Signals returns the registered signals
func (l *Loop) Signals() []os.Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]os.Signal(nil), l.signals...)
}

// Forget stops signal delivery, drops anything queued and closes the pipe.
// A worker process calls it before doing anything else so it never acts on
// signals meant for the master. Safe to call more than once.
func (l *Loop) Forget() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	if l.ch != nil {
		signal.Stop(l.ch)
		close(l.ch)
		l.ch = nil
	}
	l.signals = nil
	l.queue = nil
	unix.Close(l.r)
	unix.Close(l.w)
	l.r, l.w = -1, -1
}

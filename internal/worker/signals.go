package worker

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	trapOnce sync.Once
	quitCh   chan os.Signal

	termMu    sync.Mutex
	termHooks []func()
)

// TrapSignals installs the signal handling of a worker process. SIGTERM and
// SIGINT run the terminate hooks and exit 0 at once; SIGQUIT is held until
// RunChild picks it up. Call it before any other setup so a signal sent
// during startup never reaches the runtime's default action. Idempotent.
func TrapSignals() {
	trapOnce.Do(func() {
		quitCh = make(chan os.Signal, 1)
		signal.Notify(quitCh, syscall.SIGQUIT)

		term := make(chan os.Signal, 1)
		signal.Notify(term, syscall.SIGTERM, syscall.SIGINT)
		go func() {
			<-term
			runTerminateHooks()
			os.Exit(0)
		}()
	})
}

// OnTerminate registers fn to run just before a worker process exits on
// SIGTERM or SIGINT. fn must not block.
func OnTerminate(fn func()) {
	termMu.Lock()
	defer termMu.Unlock()
	termHooks = append(termHooks, fn)
}

func runTerminateHooks() {
	termMu.Lock()
	pending := append([]func(){}, termHooks...)
	termMu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

package worker

import "sync"

var (
	hooksMu sync.Mutex
	hooks   []func()
)

// AfterFork registers fn to run once in every worker process before its
// handler, in registration order. Used to drop master-only state.
func AfterFork(fn func()) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = append(hooks, fn)
}

// RunAfterForkHooks runs and clears the registered hooks
func RunAfterForkHooks() {
	hooksMu.Lock()
	pending := hooks
	hooks = nil
	hooksMu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

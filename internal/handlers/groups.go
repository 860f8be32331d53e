package handlers

import (
	"sync"
	"syscall"

	"github.com/charliek/horn/internal/worker"
)

// inFlight holds the process groups of commands still running
var inFlight = struct {
	sync.Mutex
	pgids map[int]struct{}
}{pgids: make(map[int]struct{})}

func init() {
	worker.OnTerminate(KillRunning)
}

func track(pgid int) (untrack func()) {
	inFlight.Lock()
	inFlight.pgids[pgid] = struct{}{}
	inFlight.Unlock()

	return func() {
		inFlight.Lock()
		delete(inFlight.pgids, pgid)
		inFlight.Unlock()
	}
}

// KillRunning sends SIGKILL to the process group of every command in
// flight. A worker process runs it on SIGTERM or SIGINT before exiting.
func KillRunning() {
	inFlight.Lock()
	defer inFlight.Unlock()
	for pgid := range inFlight.pgids {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
}

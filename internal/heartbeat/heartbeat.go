// Package heartbeat implements the liveness flag shared between the master
// and one worker process: an unlinked temporary file whose permission bits
// the worker flips on every iteration and whose change time the master reads.
package heartbeat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned when using a heartbeat after Close
var ErrClosed = errors.New("heartbeat closed")

// createMode is the permission the file is created with. Toggle never
// produces it, so seeing it means the worker has not beaten yet.
const createMode = 0o600

// Stat is what the master learns from one look at the file
type Stat struct {
	Mode    os.FileMode
	Changed time.Time
}

// File is one end of a heartbeat. It is not safe for concurrent use; each
// process owns its own *File for the same underlying inode.
type File struct {
	mu      sync.Mutex
	f       *os.File
	initial os.FileMode
	phase   os.FileMode
}

// Create makes a new heartbeat file in dir (os.TempDir() when empty). The
// directory entry is removed immediately, so the inode lives exactly as long
// as some process holds a descriptor to it. Name collisions are retried.
func Create(dir string) (*File, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	var f *os.File
	for {
		path := filepath.Join(dir, "horn-"+uuid.NewString())
		var err error
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, createMode)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating heartbeat file: %w", err)
		}
		if err := os.Remove(path); err != nil {
			f.Close()
			return nil, fmt.Errorf("unlinking heartbeat file: %w", err)
		}
		break
	}

	h := &File{f: f}
	st, err := h.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	h.initial = st.Mode
	return h, nil
}

// Open adopts an inherited heartbeat descriptor in the worker process and
// marks it close-on-exec so commands the worker runs do not inherit it.
func Open(fd uintptr) (*File, error) {
	f := os.NewFile(fd, "heartbeat")
	if f == nil {
		return nil, fmt.Errorf("heartbeat descriptor %d: %w", fd, unix.EBADF)
	}
	unix.CloseOnExec(int(fd))

	h := &File{f: f}
	st, err := h.Stat()
	if err != nil {
		return nil, fmt.Errorf("heartbeat descriptor %d: %w", fd, err)
	}
	h.initial = st.Mode
	return h, nil
}

// Toggle flips the permission bits between 0 and 1, which updates the
// file's change time.
func (h *File) Toggle() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.f == nil {
		return ErrClosed
	}
	if h.phase == 0 {
		h.phase = 1
	} else {
		h.phase = 0
	}
	return h.f.Chmod(h.phase)
}

// Stat reads the current permission bits and change time
func (h *File) Stat() (Stat, error) {
	h.mu.Lock()
	f := h.f
	h.mu.Unlock()

	if f == nil {
		return Stat{}, ErrClosed
	}

	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return Stat{}, fmt.Errorf("stat heartbeat: %w", err)
	}
	sec, nsec := st.Ctim.Unix()
	return Stat{
		Mode:    os.FileMode(st.Mode) & os.ModePerm,
		Changed: time.Unix(sec, nsec),
	}, nil
}

// InitialMode is the mode the file had when this end first saw it
func (h *File) InitialMode() os.FileMode {
	return h.initial
}

// Valid reports whether the descriptor is still usable
func (h *File) Valid() bool {
	_, err := h.Stat()
	return err == nil
}

// OSFile exposes the descriptor so it can be handed to a child process
func (h *File) OSFile() *os.File {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.f
}

// Close releases this end. Safe to call more than once.
func (h *File) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

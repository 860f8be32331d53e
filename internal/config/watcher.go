package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher calls a function when the config file changes. Bursts of events
// (editors often write, chmod and rename in quick succession) are collapsed
// into one call per debounce window, and calls are rate limited.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onChange func()
	logger   *slog.Logger
	limiter  *rate.Limiter
	window   time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
	doneCh chan struct{}
}

// WatcherConfig tunes a Watcher
type WatcherConfig struct {
	// Debounce is the quiet period before a change is reported. Default: 250ms
	Debounce time.Duration
	// MinInterval is the minimum time between two reports. Default: 2s
	MinInterval time.Duration
	Logger      *slog.Logger
}

// NewWatcher watches path. The parent directory is watched so the file may
// be replaced rather than written in place.
func NewWatcher(path string, cfg WatcherConfig, onChange func()) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 250 * time.Millisecond
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}

	w := &Watcher{
		path:     absPath,
		fsw:      fsw,
		onChange: onChange,
		logger:   cfg.Logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		window:   cfg.Debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops watching. Pending changes are dropped.
func (w *Watcher) Close() error {
	select {
	case <-w.stopCh:
		return nil
	default:
	}
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// schedule restarts the debounce window
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.fire)
}

func (w *Watcher) fire() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	if !w.limiter.Allow() {
		w.logger.Warn("config changed again too soon, ignoring", "path", w.path)
		return
	}
	w.logger.Info("config changed", "path", w.path)
	w.onChange()
}

package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches one file using fsnotify.
type Watcher struct {
	fsw    *fsnotify.Watcher
	target string
	config Config
	logger zerolog.Logger

	events chan Event
	errors chan error

	mu      sync.Mutex
	pending *Event
	timer   *time.Timer

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithConfig replaces the watcher configuration.
func WithConfig(c Config) Option {
	return func(w *Watcher) { w.config = c }
}

// WithLogger sets the logger for dropped events and errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New watches path. The file itself may not exist yet, but its directory must.
func New(path string, opts ...Option) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		target:  absPath,
		config:  DefaultConfig(),
		logger:  zerolog.Nop(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.config.Delay <= 0 {
		w.config.Delay = DefaultConfig().Delay
	}
	if w.config.BufferSize <= 0 {
		w.config.BufferSize = DefaultConfig().BufferSize
	}
	w.events = make(chan Event, w.config.BufferSize)
	w.errors = make(chan error, w.config.BufferSize)

	dir := filepath.Dir(absPath)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathNotExist
		}
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.target }

// Events returns the debounced event channel. It is closed by Close.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the error channel. It is closed by Close.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()

	err := w.fsw.Close()
	w.closedWg.Wait()

	close(w.events)
	close(w.errors)
	return err
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

// handleFSEvent filters to the target file and debounces.
func (w *Watcher) handleFSEvent(fsEvent fsnotify.Event) {
	if filepath.Clean(fsEvent.Name) != w.target {
		return
	}
	op := convertOp(fsEvent.Op)
	if op == 0 || (w.config.IgnoreChmod && op == OpChmod) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	now := time.Now()
	if w.pending != nil {
		w.pending.Op |= op
		w.pending.Timestamp = now
		w.timer.Reset(w.config.Delay)
		return
	}

	w.pending = &Event{Path: w.target, Op: op, Timestamp: now}
	w.timer = time.AfterFunc(w.config.Delay, w.fire)
}

// fire sends the pending event. The send happens under the lock so Close
// cannot close the channel underneath it.
func (w *Watcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil || w.closed {
		return
	}
	event := *w.pending
	w.pending = nil

	select {
	case w.events <- event:
	default:
		w.logger.Warn().Str("path", event.Path).Stringer("op", event.Op).Msg("watcher: event dropped, buffer full")
	}
}

// sendError forwards an error without blocking.
func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
		w.logger.Warn().Err(err).Msg("watcher: error dropped, buffer full")
	}
}

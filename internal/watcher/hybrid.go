package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches one directory with fsnotify, falling back to polling.
type Watcher struct {
	fsWatcher      *fsnotify.Watcher
	debouncer      *Debouncer
	events         chan []FileEvent
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	stopCh         chan struct{}
	ready          chan struct{}
	readyOnce      sync.Once
	polling        atomic.Bool
	droppedBatches atomic.Uint64
}

// New creates a watcher. fsnotify is tried first unless opts.ForcePolling
// is set.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	w := &Watcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		opts:      opts,
		stopCh:    make(chan struct{}),
		ready:     make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
		} else {
			slog.Warn("fsnotify unavailable, polling instead", slog.String("error", err.Error()))
		}
	}
	w.polling.Store(w.fsWatcher == nil)
	return w, nil
}

// Start watches dir until ctx is cancelled or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", dir)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	go w.forward(ctx)

	if w.fsWatcher != nil {
		err := w.fsWatcher.Add(abs)
		if err == nil {
			w.markReady()
			return w.runFsnotify(ctx)
		}
		slog.Warn("fsnotify watch failed, polling instead",
			slog.String("dir", abs), slog.String("error", err.Error()))
		_ = w.fsWatcher.Close()
		w.polling.Store(true)
	}

	poller := NewPollingWatcher(w.opts.PollInterval, w.add)
	poller.onBaseline = w.markReady
	err = poller.Run(ctx, abs)
	if errors.Is(err, context.Canceled) && w.isStopped() {
		return nil
	}
	return err
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if w.isStopped() {
				return nil
			}
			return ctx.Err()
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleFsnotifyEvent(event fsnotify.Event) {
	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}
	if op != OpDelete {
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return
		}
	}
	w.add(FileEvent{Path: event.Name, Operation: op, Timestamp: time.Now()})
}

// add filters an event and hands it to the debouncer.
func (w *Watcher) add(event FileEvent) {
	if !w.opts.accepts(event.Path) {
		return
	}
	w.debouncer.Add(event)
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *Watcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		n := w.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (w *Watcher) markReady() {
	w.readyOnce.Do(func() { close(w.ready) })
}

// Ready is closed once changes in the directory are being observed.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

func (w *Watcher) isStopped() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// Stop ends Start and closes Events. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	close(w.events)
	return nil
}

// Events returns the channel of debounced batches. It is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Mode reports "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.polling.Load() {
		return "polling"
	}
	return "fsnotify"
}

// DroppedBatches returns how many batches were dropped on a full buffer.
func (w *Watcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

package async

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/resumatch/internal/catalog"
)

// LockFile marks a background rebuild in progress. It survives a crash, so
// the next serve knows the indexes may be older than the catalog.
const LockFile = "rebuild.lock"

// RebuildFunc rebuilds the index of one kind, reporting through progress.
type RebuildFunc func(ctx context.Context, kind catalog.Kind, progress *Progress) error

// Config configures a BackgroundRebuilder.
type Config struct {
	DataDir string
	// Kinds are rebuilt one after another, in order.
	Kinds []catalog.Kind
}

// BackgroundRebuilder runs rebuilds in a goroutine with progress tracking.
type BackgroundRebuilder struct {
	config   Config
	progress map[catalog.Kind]*Progress

	// RebuildFunc does the work. It must be set before Start.
	RebuildFunc RebuildFunc

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	started bool
	running bool
	err     error
}

// NewBackgroundRebuilder creates a rebuilder for cfg.Kinds.
func NewBackgroundRebuilder(cfg Config) *BackgroundRebuilder {
	progress := make(map[catalog.Kind]*Progress, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		progress[k] = NewProgress(string(k))
	}
	return &BackgroundRebuilder{
		config:   cfg,
		progress: progress,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the tracker for kind, or nil when kind is not rebuilt.
func (b *BackgroundRebuilder) Progress(kind catalog.Kind) *Progress {
	return b.progress[kind]
}

// Snapshots returns the progress of every kind, in rebuild order.
func (b *BackgroundRebuilder) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(b.config.Kinds))
	for _, k := range b.config.Kinds {
		out = append(out, b.progress[k].Snapshot())
	}
	return out
}

// IsRunning returns true while the goroutine is working.
func (b *BackgroundRebuilder) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// IsRebuilding reports whether kind is queued or being rebuilt.
func (b *BackgroundRebuilder) IsRebuilding(kind catalog.Kind) bool {
	p := b.progress[kind]
	return p != nil && p.IsActive()
}

// Start begins rebuilding in the background. It returns immediately; a
// second call is a no-op.
func (b *BackgroundRebuilder) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundRebuilder) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := b.writeLock(); err != nil {
		b.fail(err)
		return
	}

	var errs []error
	for _, kind := range b.config.Kinds {
		p := b.progress[kind]
		if ctx.Err() != nil {
			p.SetError(ctx.Err().Error())
			errs = append(errs, ctx.Err())
			continue
		}
		p.Begin()
		if b.RebuildFunc == nil {
			p.SetReady()
			continue
		}
		if err := b.RebuildFunc(ctx, kind, p); err != nil {
			p.SetError(err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		p.SetReady()
	}

	b.mu.Lock()
	b.err = errors.Join(errs...)
	b.mu.Unlock()

	// An interrupted run keeps the lock so the next start rebuilds again.
	if ctx.Err() == nil {
		_ = os.Remove(filepath.Join(b.config.DataDir, LockFile))
	}
}

func (b *BackgroundRebuilder) writeLock() error {
	if err := os.MkdirAll(b.config.DataDir, 0o755); err != nil {
		return err
	}
	kinds := make([]string, len(b.config.Kinds))
	for i, k := range b.config.Kinds {
		kinds[i] = string(k)
	}
	content := time.Now().UTC().Format(time.RFC3339) + " " + strings.Join(kinds, ",") + "\n"
	return os.WriteFile(filepath.Join(b.config.DataDir, LockFile), []byte(content), 0o644)
}

func (b *BackgroundRebuilder) fail(err error) {
	for _, k := range b.config.Kinds {
		b.progress[k].SetError(err.Error())
	}
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Stop cancels the rebuild and waits for the goroutine to exit.
func (b *BackgroundRebuilder) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
	}
	<-b.doneCh
}

// Wait blocks until the rebuild completes and returns the joined errors of
// the kinds that failed. It returns nil at once if Start was never called.
func (b *BackgroundRebuilder) Wait() error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return nil
	}

	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// HasIncompleteLock reports whether a previous background rebuild in
// dataDir did not finish.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, LockFile))
	return err == nil
}

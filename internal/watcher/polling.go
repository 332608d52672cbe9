package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PollingWatcher detects changes by rescanning the directory on an
// interval. It does not descend into subdirectories.
type PollingWatcher struct {
	interval time.Duration
	dir      string
	state    map[string]fileSnapshot
	emit     func(FileEvent)

	// onBaseline, when set, runs after the initial scan.
	onBaseline func()
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a poller that reports changes to emit.
func NewPollingWatcher(interval time.Duration, emit func(FileEvent)) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		state:    make(map[string]fileSnapshot),
		emit:     emit,
	}
}

// Run records the current directory contents as the baseline, then polls
// until ctx is cancelled.
func (p *PollingWatcher) Run(ctx context.Context, dir string) error {
	p.dir = dir
	baseline, err := p.scan()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.state = baseline
	if p.onBaseline != nil {
		p.onBaseline()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				return err
			}
		}
	}
}

func (p *PollingWatcher) scan() (map[string]fileSnapshot, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]fileSnapshot, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		files[filepath.Join(p.dir, e.Name())] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return files, nil
}

// detectChanges diffs the directory against the previous scan.
func (p *PollingWatcher) detectChanges() error {
	current, err := p.scan()
	if err != nil {
		return fmt.Errorf("scan %s: %w", p.dir, err)
	}
	now := time.Now()

	for path, snap := range current {
		prev, existed := p.state[path]
		switch {
		case !existed:
			p.emit(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emit(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range p.state {
		if _, ok := current[path]; !ok {
			p.emit(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
	return nil
}

// Package async rebuilds indexes in the background while the MCP server
// keeps answering requests.
package async

import (
	"sync"
	"time"
)

// RebuildStatus is the state of one kind's background rebuild.
type RebuildStatus string

const (
	// StatusPending means the rebuild is queued behind another kind.
	StatusPending RebuildStatus = "pending"
	// StatusRebuilding means records are being embedded or indexed.
	StatusRebuilding RebuildStatus = "rebuilding"
	// StatusReady means the new index is persisted and searchable.
	StatusReady RebuildStatus = "ready"
	// StatusError means the rebuild failed; the previous index, if any, is kept.
	StatusError RebuildStatus = "error"
)

// Snapshot is an immutable copy of a rebuild's progress.
type Snapshot struct {
	Kind           string  `json:"kind"`
	Status         string  `json:"status"`
	Stage          string  `json:"stage,omitempty"`
	Current        int     `json:"current"`
	Total          int     `json:"total"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Progress tracks one kind's rebuild. Safe for concurrent use.
type Progress struct {
	mu sync.RWMutex

	kind         string
	status       RebuildStatus
	stage        string
	current      int
	total        int
	startTime    time.Time
	endTime      time.Time
	errorMessage string
}

// NewProgress returns a pending tracker for kind.
func NewProgress(kind string) *Progress {
	return &Progress{kind: kind, status: StatusPending}
}

// Begin marks the rebuild as running.
func (p *Progress) Begin() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusRebuilding
	p.startTime = time.Now()
}

// SetStage records the current stage and its counters.
func (p *Progress) SetStage(stage string, current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.current = current
	p.total = total
}

// SetError marks the rebuild as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
	p.endTime = time.Now()
}

// SetReady marks the rebuild as complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
	p.stage = "complete"
	p.current = p.total
	p.endTime = time.Now()
}

// IsActive reports whether the rebuild is pending or running.
func (p *Progress) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusPending || p.status == StatusRebuilding
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.total > 0 {
		pct = float64(p.current) / float64(p.total) * 100.0
	}

	var elapsed time.Duration
	switch {
	case p.startTime.IsZero():
	case p.endTime.IsZero():
		elapsed = time.Since(p.startTime)
	default:
		elapsed = p.endTime.Sub(p.startTime)
	}

	return Snapshot{
		Kind:           p.kind,
		Status:         string(p.status),
		Stage:          p.stage,
		Current:        p.current,
		Total:          p.total,
		ProgressPct:    pct,
		ElapsedSeconds: int(elapsed.Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}

package async

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProgress(t *testing.T) {
	// Given/When: creating a new progress tracker
	p := NewProgress("job")

	// Then: it is pending with no counters
	snap := p.Snapshot()
	assert.Equal(t, "job", snap.Kind)
	assert.Equal(t, string(StatusPending), snap.Status)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.ElapsedSeconds)
	assert.True(t, p.IsActive())
}

func TestProgress_StagesAndPercentage(t *testing.T) {
	// Given: a running rebuild
	p := NewProgress("candidate")
	p.Begin()

	// When: the embedding stage reports progress
	p.SetStage("embedding", 25, 100)

	// Then: the snapshot carries the stage and percentage
	snap := p.Snapshot()
	assert.Equal(t, string(StatusRebuilding), snap.Status)
	assert.Equal(t, "embedding", snap.Stage)
	assert.Equal(t, 25, snap.Current)
	assert.InDelta(t, 25.0, snap.ProgressPct, 0.001)
}

func TestProgress_SetReady(t *testing.T) {
	p := NewProgress("job")
	p.Begin()
	p.SetStage("indexing", 40, 50)

	p.SetReady()

	snap := p.Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.Equal(t, "complete", snap.Stage)
	assert.Equal(t, 50, snap.Current)
	assert.InDelta(t, 100.0, snap.ProgressPct, 0.001)
	assert.False(t, p.IsActive())
}

func TestProgress_SetError(t *testing.T) {
	p := NewProgress("job")
	p.Begin()

	p.SetError("ollama unreachable")

	snap := p.Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "ollama unreachable", snap.ErrorMessage)
	assert.False(t, p.IsActive())
}

func TestProgress_ConcurrentAccess(t *testing.T) {
	// Given: one tracker shared by writers and readers
	p := NewProgress("job")
	p.Begin()

	// When: updating and reading from many goroutines
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			p.SetStage("embedding", n, 50)
		}(i)
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
		}()
	}
	wg.Wait()

	// Then: the tracker is still consistent
	snap := p.Snapshot()
	assert.Equal(t, 50, snap.Total)
	assert.LessOrEqual(t, snap.Current, 50)
}

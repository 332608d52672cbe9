package ui

import (
	"sync"
	"time"
)

// ProgressTracker manages progress state across stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.Mutex
	stage      Stage
	current    int
	total      int
	message    string
	startTime  time.Time
	stageStart time.Time

	// lastETA is the previous estimate, for exponential smoothing.
	lastETA time.Duration

	lastCurrent   int
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	speedSamples  int
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage    Stage
	Current  int
	Total    int
	Progress float64
	ETA      time.Duration
	Message  string
	// Speed and AvgSpeed are records per second.
	Speed    float64
	AvgSpeed float64
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:         StageLoading,
		startTime:     now,
		stageStart:    now,
		lastSpeedCalc: now,
	}
}

// Apply records an event, switching stage when it changes.
func (p *ProgressTracker) Apply(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if event.Stage != p.stage {
		p.stage = event.Stage
		p.stageStart = now
		p.lastETA = 0
		p.lastCurrent = 0
		p.lastSpeedCalc = now
		p.currentSpeed = 0
		p.avgSpeed = 0
		p.speedSamples = 0
	}
	p.total = event.Total
	p.current = event.Current
	if event.Message != "" {
		p.message = event.Message
	}

	if elapsed := now.Sub(p.lastSpeedCalc); elapsed >= speedSampleEvery {
		if delta := p.current - p.lastCurrent; delta > 0 {
			p.currentSpeed = float64(delta) / elapsed.Seconds()
			p.speedSamples++
			p.avgSpeed = ewma(p.avgSpeed, p.currentSpeed, 0.2, p.speedSamples == 1)
		}
		p.lastCurrent = p.current
		p.lastSpeedCalc = now
	}
}

// speedSampleEvery spaces speed samples so bursty batches do not make the
// rate jump around.
const speedSampleEvery = 500 * time.Millisecond

// ewma blends sample into prev with weight alpha; first takes sample as is.
func ewma(prev, sample, alpha float64, first bool) float64 {
	if first {
		return sample
	}
	return alpha*sample + (1-alpha)*prev
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.startTime)
}

// Stats returns current statistics snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = min(float64(p.current)/float64(p.total), 1.0)
	}
	return ProgressStats{
		Stage:    p.stage,
		Current:  p.current,
		Total:    p.total,
		Progress: progress,
		ETA:      p.eta(),
		Message:  p.message,
		Speed:    p.currentSpeed,
		AvgSpeed: p.avgSpeed,
	}
}

// eta extrapolates the stage's elapsed time to completion, smoothed
// against the previous estimate. Callers hold p.mu.
func (p *ProgressTracker) eta() time.Duration {
	if p.current <= 0 || p.total <= 0 || p.current >= p.total {
		return 0
	}
	elapsed := time.Since(p.stageStart)
	done := float64(p.current) / float64(p.total)
	raw := float64(elapsed)/done - float64(elapsed)
	if raw < 0 {
		return 0
	}
	p.lastETA = time.Duration(ewma(float64(p.lastETA), raw, 0.3, p.lastETA == 0))
	return p.lastETA
}

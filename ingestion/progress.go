package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports ingestion progress to a writer.
type ProgressTracker struct {
	writer         io.Writer
	label          string
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker for total items of the given label,
// reporting every reportInterval items.
func NewProgressTracker(writer io.Writer, label string, total, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		label:          label,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Increment increases the current progress by delta.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current += delta
	if p.current > p.total {
		p.current = p.total
	}

	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints the final progress line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer)
}

// Current returns the number of items processed so far.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %.1f/s",
		p.label, p.current, p.total, percentage, rate)
}

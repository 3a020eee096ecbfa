package outpaint

import (
	"sync"
	"time"
)

// Progress tracks region completion for one job. Thread-safe: sweeps
// running in parallel report into the same tracker.
type Progress struct {
	mu        sync.Mutex
	total     int
	completed int
	skipped   int
	startTime time.Time
	now       func() time.Time
}

// ProgressSnapshot is a point-in-time view of job progress.
type ProgressSnapshot struct {
	Total     int
	Completed int // regions generated this run
	Skipped   int // regions restored from the journal
	Elapsed   time.Duration
	ETA       time.Duration // zero until at least one region completed
}

// NewProgress creates a tracker for a plan of total regions.
func NewProgress(total int) *Progress {
	return &Progress{
		total: total,
		now:   time.Now,
	}
}

// Start marks the beginning of the run. ETA is measured from here.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startTime = p.now()
}

// RegionCompleted records one freshly generated region.
func (p *Progress) RegionCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
}

// RegionSkipped records a region that was already painted.
func (p *Progress) RegionSkipped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped++
}

// Snapshot returns the current counts plus an ETA extrapolated from the
// average time per completed region.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := ProgressSnapshot{
		Total:     p.total,
		Completed: p.completed,
		Skipped:   p.skipped,
	}
	if !p.startTime.IsZero() {
		snap.Elapsed = p.now().Sub(p.startTime)
	}

	remaining := p.total - p.completed - p.skipped
	if p.completed > 0 && remaining > 0 {
		perRegion := snap.Elapsed / time.Duration(p.completed)
		snap.ETA = perRegion * time.Duration(remaining)
	}
	return snap
}

// Done reports whether every region is accounted for.
func (p *Progress) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed+p.skipped >= p.total
}

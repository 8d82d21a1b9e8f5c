package scanner

import "sync"

// ProgressTracker tracks and reports pass progress.
type ProgressTracker struct {
	callback func(*Progress)
	progress Progress
	mu       sync.Mutex
}

// NewProgressTracker creates a new progress tracker. callback may be nil.
func NewProgressTracker(callback func(*Progress)) *ProgressTracker {
	return &ProgressTracker{
		callback: callback,
		progress: Progress{
			Phase: PhaseLoading,
		},
	}
}

// SetPhase moves to phase and resets the counters.
func (p *ProgressTracker) SetPhase(phase Phase) {
	p.update(func(pr *Progress) {
		pr.Phase = phase
		pr.Current = 0
		pr.Total = 0
		pr.CurrentItem = ""
	})
}

// SetTotal sets the total items for current phase.
func (p *ProgressTracker) SetTotal(total int) {
	p.update(func(pr *Progress) {
		pr.Total = total
	})
}

// Increment increments the current progress.
func (p *ProgressTracker) Increment(currentItem string) {
	p.update(func(pr *Progress) {
		pr.Current++
		pr.CurrentItem = currentItem
	})
}

// Get returns current progress.
func (p *ProgressTracker) Get() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.progress
}

func (p *ProgressTracker) update(fn func(*Progress)) {
	p.mu.Lock()
	fn(&p.progress)
	// Copy to avoid race.
	progress := p.progress
	p.mu.Unlock()

	if p.callback != nil {
		p.callback(&progress)
	}
}

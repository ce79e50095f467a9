package service

import (
	"sync"
	"time"
)

// Cycle phases reported by Status.
const (
	PhaseIdle     = "idle"
	PhaseLoading  = "loading"
	PhaseCrawling = "crawling"
	PhaseMerging  = "merging"
	PhaseDone     = "done"
	PhaseFailed   = "failed"
)

// progress is the live view of the current or last cycle.
type progress struct {
	mu      sync.RWMutex
	cycleID string
	phase   string
	started time.Time
	last    Summary
}

func (p *progress) begin(cycleID string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycleID, p.phase, p.started = cycleID, PhaseLoading, at
}

func (p *progress) enter(phase string) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

func (p *progress) finish(sum Summary, phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase, p.last = phase, sum
}

// Status returns a JSON-friendly snapshot of cycle progress. Counts belong
// to the most recently finished cycle.
func (s *Service) Status() map[string]any {
	s.progress.mu.RLock()
	defer s.progress.mu.RUnlock()

	phase := s.progress.phase
	if phase == "" {
		phase = PhaseIdle
	}
	out := map[string]any{
		"cycle_id": s.progress.cycleID,
		"phase":    phase,
	}
	if !s.progress.started.IsZero() {
		out["started_at"] = s.progress.started.UTC().Format(time.RFC3339)
	}
	if last := s.progress.last; last.CycleID != "" {
		out["last"] = map[string]any{
			"cycle_id":      last.CycleID,
			"selected":      last.Selected,
			"ranked":        last.Ranked,
			"resolved":      last.Resolved,
			"unresolved":    last.Unresolved,
			"new_match_ids": last.NewMatchIDs,
			"fetched":       last.Fetched,
			"scored":        last.Scored,
			"roster_size":   last.Persisted.RosterSize,
			"partitions":    len(last.Persisted.Partitions),
			"duration_ms":   last.Duration.Milliseconds(),
		}
	}
	return out
}

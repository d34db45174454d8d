package ingest

import (
	"sync"

	"github.com/lguimbarda/riskstream/ingest/record"
)

// Tally accumulates a client-side risk distribution from the batches of
// a session. At session end it can be checked against the summary's own
// distribution to detect a feed that dropped or duplicated items.
type Tally struct {
	mu       sync.Mutex
	dist     record.Distribution
	patients int
}

// Observe folds one batch of items into the tally. Items without a
// recognizable risk level are counted as patients but not binned.
func (t *Tally) Observe(items []record.Patient) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.patients += len(items)
	for _, p := range items {
		switch p.RiskLevel() {
		case "low":
			t.dist.Low++
		case "medium":
			t.dist.Medium++
		case "high":
			t.dist.High++
		}
	}
}

// Distribution returns the accumulated low/medium/high counts.
func (t *Tally) Distribution() record.Distribution {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dist
}

// Patients returns the number of items observed.
func (t *Tally) Patients() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.patients
}

// Matches reports whether the accumulated distribution equals the one
// the summary reported.
func (t *Tally) Matches(summary record.Summary) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dist == summary.RiskDistribution
}

// Wrap returns Handlers that fold every batch into the tally before
// forwarding events to next.
func (t *Tally) Wrap(next Handlers) Handlers {
	return Handlers{
		OnMetadata: next.OnMetadata,
		OnBatch: func(items []record.Patient, processed, total int) {
			t.Observe(items)
			next.batch(items, processed, total)
		},
		OnSummary: next.OnSummary,
		OnError:   next.OnError,
	}
}

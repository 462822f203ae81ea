package domain

import (
	"sync"
	"time"
)

// ProviderStats is a read-only snapshot of one provider's counters.
// SuccessRate is derived at read time, never stored.
type ProviderStats struct {
	Successes   int           `json:"successes"`
	Failures    int           `json:"failures"`
	AvgTime     time.Duration `json:"avg_time_ns"`
	SuccessRate float64       `json:"success_rate"`
}

type providerCounters struct {
	successes int
	failures  int
	avgTime   time.Duration
}

// StatsTracker maintains per-provider outcome counters.
// Entries are created lazily on first outcome and never removed.
// All methods are safe for concurrent use.
type StatsTracker struct {
	mu       sync.RWMutex
	counters map[string]*providerCounters
}

// NewStatsTracker creates an empty stats tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{
		mu:       sync.RWMutex{},
		counters: make(map[string]*providerCounters),
	}
}

// Record registers one terminal outcome (success or retry exhaustion) for a
// provider and folds elapsed into the cumulative mean.
func (t *StatsTracker) Record(name string, success bool, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counters[name]
	if !ok {
		c = &providerCounters{successes: 0, failures: 0, avgTime: 0}
		t.counters[name] = c
	}

	if success {
		c.successes++
	} else {
		c.failures++
	}

	total := c.successes + c.failures
	c.avgTime = time.Duration((int64(c.avgTime)*int64(total-1) + int64(elapsed)) / int64(total))
}

// Snapshot returns a copy of all counters with derived success rates.
func (t *StatsTracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ProviderStats, len(t.counters))
	for name, c := range t.counters {
		total := c.successes + c.failures
		if total < 1 {
			total = 1
		}
		out[name] = ProviderStats{
			Successes:   c.successes,
			Failures:    c.failures,
			AvgTime:     c.avgTime,
			SuccessRate: float64(c.successes) / float64(total),
		}
	}
	return out
}

// internal/stats/accumulator.go
package stats

import (
	"sort"
	"sync"

	"github.com/typeloop/typeloop/internal/models"
)

// charAgg is the running aggregate for one character within a session.
type charAgg struct {
	totalMs float64
	maxMs   float64
	count   int
	errors  int
}

// Accumulator buffers per-character timing for the life of one typing
// session. It is owned by the active session and passed by reference into the
// keystroke handler, not ambient global state. The buffer is only cleared via
// Reset once a flush is confirmed, so a failed flush can be retried with the
// full picture intact.
type Accumulator struct {
	mu    sync.Mutex
	chars map[string]*charAgg
}

func NewAccumulator() *Accumulator {
	return &Accumulator{chars: make(map[string]*charAgg)}
}

// Record folds one keystroke into the aggregate.
func (a *Accumulator) Record(char string, latencyMs float64, isError bool) {
	if char == "" || latencyMs < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	agg, ok := a.chars[char]
	if !ok {
		agg = &charAgg{}
		a.chars[char] = agg
	}
	agg.totalMs += latencyMs
	agg.count++
	if latencyMs > agg.maxMs {
		agg.maxMs = latencyMs
	}
	if isError {
		agg.errors++
	}
}

// Len reports how many distinct characters have been recorded.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chars)
}

// Finalize snapshots the buffer into flushable entries without clearing it.
// Entries are sorted by character for a stable batch shape.
func (a *Accumulator) Finalize() []models.CharacterStat {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.CharacterStat, 0, len(a.chars))
	for ch, agg := range a.chars {
		out = append(out, models.CharacterStat{
			Char:           ch,
			AvgLatencyMs:   agg.totalMs / float64(agg.count),
			MaxLatencyMs:   agg.maxMs,
			ErrorFrequency: float64(agg.errors) / float64(agg.count) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

// Reset clears the buffer. Call only after the flush was confirmed.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chars = make(map[string]*charAgg)
}

package cache

import (
	"sort"
	"time"

	cacheerrors "github.com/adaptcache/adaptcache/pkg/errors"
	"github.com/adaptcache/adaptcache/pkg/types"
)

// EvictionStrategy ranks entries for removal under capacity pressure.
// Implementations are stateless: given a metadata snapshot and a target
// count they return the keys to remove, most disposable first.
//
// Snapshots are handed over in insertion order and every strategy sorts
// stably, so eviction is deterministic: equal-ranked entries fall back
// to insertion order.
type EvictionStrategy interface {
	Name() types.Strategy
	Victims(entries []types.EntryInfo, n int, now time.Time) []string
}

// StrategyFor returns the eviction strategy implementation for kind.
func StrategyFor(kind types.Strategy) (EvictionStrategy, error) {
	switch kind {
	case types.StrategyLRU:
		return lruStrategy{}, nil
	case types.StrategyLFU:
		return lfuStrategy{}, nil
	case types.StrategyFIFO:
		return fifoStrategy{}, nil
	case types.StrategyAdaptive:
		return adaptiveStrategy{}, nil
	}
	return nil, cacheerrors.Newf(cacheerrors.ErrCodeInvalidConfig, "unknown eviction strategy %q", kind)
}

// takeVictims stably sorts the snapshot with less and returns the first
// n keys. n >= len evicts everything; n <= 0 is a no-op.
func takeVictims(entries []types.EntryInfo, n int, less func(a, b types.EntryInfo) bool) []string {
	if n <= 0 || len(entries) == 0 {
		return nil
	}

	ranked := make([]types.EntryInfo, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = ranked[i].Key
	}
	return keys
}

// lruStrategy removes the entries accessed least recently.
type lruStrategy struct{}

func (lruStrategy) Name() types.Strategy { return types.StrategyLRU }

func (lruStrategy) Victims(entries []types.EntryInfo, n int, _ time.Time) []string {
	return takeVictims(entries, n, func(a, b types.EntryInfo) bool {
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	})
}

// lfuStrategy removes the entries accessed least often.
type lfuStrategy struct{}

func (lfuStrategy) Name() types.Strategy { return types.StrategyLFU }

func (lfuStrategy) Victims(entries []types.EntryInfo, n int, _ time.Time) []string {
	return takeVictims(entries, n, func(a, b types.EntryInfo) bool {
		return a.AccessCount < b.AccessCount
	})
}

// fifoStrategy removes the oldest entries.
type fifoStrategy struct{}

func (fifoStrategy) Name() types.Strategy { return types.StrategyFIFO }

func (fifoStrategy) Victims(entries []types.EntryInfo, n int, _ time.Time) []string {
	return takeVictims(entries, n, func(a, b types.EntryInfo) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// adaptiveStrategy removes the entries with the lowest weighted score,
// combining priority, access frequency, recency, and age. Lower score
// means more disposable.
type adaptiveStrategy struct{}

func (adaptiveStrategy) Name() types.Strategy { return types.StrategyAdaptive }

func (adaptiveStrategy) Victims(entries []types.EntryInfo, n int, now time.Time) []string {
	return takeVictims(entries, n, func(a, b types.EntryInfo) bool {
		return adaptiveScore(a, now) < adaptiveScore(b, now)
	})
}

// adaptiveScore weights an entry's retention value:
//
//	0.3*priority + 0.3*accessCount + 0.2*(1/(idleMs+1)) + 0.2*(1/(ageMs+1))
func adaptiveScore(e types.EntryInfo, now time.Time) float64 {
	idle := millis(now.Sub(e.LastAccessedAt))
	age := millis(now.Sub(e.CreatedAt))
	return 0.3*e.Priority +
		0.3*float64(e.AccessCount) +
		0.2*(1.0/(idle+1.0)) +
		0.2*(1.0/(age+1.0))
}

// millis converts a duration to fractional milliseconds, clamped at zero.
func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

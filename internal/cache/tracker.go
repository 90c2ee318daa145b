package cache

import (
	"sort"
	"time"

	"github.com/adaptcache/adaptcache/pkg/types"
)

// patternRingSize bounds the per-key access-timestamp history.
const patternRingSize = 100

// minPredictionSamples is the sample count below which no next-access
// prediction is derived.
const minPredictionSamples = 3

// accessPattern tracks the access history of a single key.
type accessPattern struct {
	frequency     int64
	lastAccess    time.Time
	samples       []time.Time
	predictedNext time.Time
	hasPrediction bool
}

// Tracker records per-key access timestamps and derives next-access
// predictions from the mean interval between consecutive accesses.
//
// Tracker is not synchronized. Each namespace owns one tracker and all
// access goes through the owning namespace's lock, which is the single
// mutual-exclusion boundary for that namespace's mutable state.
type Tracker struct {
	patterns map[string]*accessPattern
}

// NewTracker creates an empty access pattern tracker.
func NewTracker() *Tracker {
	return &Tracker{patterns: make(map[string]*accessPattern)}
}

// Record appends an access at now to the key's history ring, dropping
// the oldest sample on overflow, and recomputes the prediction once at
// least three samples exist.
func (t *Tracker) Record(key string, now time.Time) {
	p, ok := t.patterns[key]
	if !ok {
		p = &accessPattern{samples: make([]time.Time, 0, patternRingSize)}
		t.patterns[key] = p
	}

	p.frequency++
	p.lastAccess = now
	p.samples = append(p.samples, now)
	if len(p.samples) > patternRingSize {
		p.samples = p.samples[1:]
	}

	if len(p.samples) >= minPredictionSamples {
		p.predictedNext = p.lastAccess.Add(meanInterval(p.samples))
		p.hasPrediction = true
	}
}

// meanInterval returns the average gap between consecutive samples.
func meanInterval(samples []time.Time) time.Duration {
	span := samples[len(samples)-1].Sub(samples[0])
	return span / time.Duration(len(samples)-1)
}

// Predict returns the predicted next access time for key, if one has
// been derived.
func (t *Tracker) Predict(key string) (time.Time, bool) {
	p, ok := t.patterns[key]
	if !ok || !p.hasPrediction {
		return time.Time{}, false
	}
	return p.predictedNext, true
}

// Snapshot returns the frequency and last access time recorded for key.
func (t *Tracker) Snapshot(key string) (types.PatternInfo, bool) {
	p, ok := t.patterns[key]
	if !ok {
		return types.PatternInfo{}, false
	}
	return types.PatternInfo{
		Key:                 key,
		Frequency:           p.frequency,
		LastAccess:          p.lastAccess,
		PredictedNextAccess: p.predictedNext,
		HasPrediction:       p.hasPrediction,
	}, true
}

// Popular returns up to topN keys with frequency >= minFrequency,
// sorted descending by frequency. Equal frequencies fall back to key
// order to keep the result deterministic.
func (t *Tracker) Popular(minFrequency int64, topN int) []string {
	if topN <= 0 {
		return nil
	}

	type keyFreq struct {
		key  string
		freq int64
	}
	candidates := make([]keyFreq, 0, len(t.patterns))
	for key, p := range t.patterns {
		if p.frequency >= minFrequency {
			candidates = append(candidates, keyFreq{key: key, freq: p.frequency})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].freq != candidates[j].freq {
			return candidates[i].freq > candidates[j].freq
		}
		return candidates[i].key < candidates[j].key
	})

	if topN < len(candidates) {
		candidates = candidates[:topN]
	}
	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.key
	}
	return keys
}

// Upcoming returns the keys whose predicted next access falls before
// now+window, soonest first. Overdue predictions are included: a key
// expected in the past is still worth loading ahead of the next ask.
func (t *Tracker) Upcoming(now time.Time, window time.Duration) []types.PatternInfo {
	horizon := now.Add(window)

	var upcoming []types.PatternInfo
	for key, p := range t.patterns {
		if p.hasPrediction && p.predictedNext.Before(horizon) {
			upcoming = append(upcoming, types.PatternInfo{
				Key:                 key,
				Frequency:           p.frequency,
				LastAccess:          p.lastAccess,
				PredictedNextAccess: p.predictedNext,
				HasPrediction:       true,
			})
		}
	}

	sort.Slice(upcoming, func(i, j int) bool {
		if !upcoming[i].PredictedNextAccess.Equal(upcoming[j].PredictedNextAccess) {
			return upcoming[i].PredictedNextAccess.Before(upcoming[j].PredictedNextAccess)
		}
		return upcoming[i].Key < upcoming[j].Key
	})
	return upcoming
}

// SweepStale removes patterns whose last access is older than
// staleness, bounding memory growth for keys that stopped being asked
// for. Returns the number of patterns removed.
func (t *Tracker) SweepStale(now time.Time, staleness time.Duration) int {
	removed := 0
	for key, p := range t.patterns {
		if now.Sub(p.lastAccess) > staleness {
			delete(t.patterns, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	return len(t.patterns)
}

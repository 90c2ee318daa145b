package cache

import (
	"math"
	"sort"
	"time"

	cacheerrors "github.com/adaptcache/adaptcache/pkg/errors"
	"github.com/adaptcache/adaptcache/pkg/types"
)

// evictionFraction is the share of a full namespace removed before an
// insert at capacity.
const evictionFraction = 0.2

// accessTimeAlpha is the exponential smoothing factor for the average
// access time statistic.
const accessTimeAlpha = 0.1

// Namespace is an independently bounded, independently configured cache
// partition. It owns its entries, its statistics, its eviction strategy
// instance, and its access pattern tracker.
//
// All mutable state sits behind a single bounded-wait lock. Callers that
// cannot acquire the lock within the configured timeout receive a
// retryable lock-timeout error instead of blocking indefinitely.
type Namespace[V any] struct {
	name        string
	maxSize     int
	lockTimeout time.Duration
	strategy    EvictionStrategy
	clock       types.Clock

	// lock is a 1-buffered channel used as a mutex with bounded wait.
	lock chan struct{}

	entries map[string]*Entry[V]
	tracker *Tracker
	seq     uint64

	hits          uint64
	misses        uint64
	evictions     uint64
	avgAccessTime float64 // nanoseconds, exponentially smoothed
}

// NewNamespace creates an empty namespace.
func NewNamespace[V any](name string, maxSize int, lockTimeout time.Duration, strategy EvictionStrategy, clock types.Clock) *Namespace[V] {
	return &Namespace[V]{
		name:        name,
		maxSize:     maxSize,
		lockTimeout: lockTimeout,
		strategy:    strategy,
		clock:       clock,
		lock:        make(chan struct{}, 1),
		entries:     make(map[string]*Entry[V]),
		tracker:     NewTracker(),
	}
}

// acquire takes the namespace lock, waiting at most lockTimeout.
func (n *Namespace[V]) acquire() error {
	select {
	case n.lock <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(n.lockTimeout)
	defer timer.Stop()
	select {
	case n.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return cacheerrors.Newf(cacheerrors.ErrCodeLockTimeout,
			"namespace %q lock not acquired within %v", n.name, n.lockTimeout).
			WithComponent("namespace")
	}
}

func (n *Namespace[V]) release() {
	<-n.lock
}

// Get returns the value for key while its age is below ttl. The lookup
// does not count as an access: hit/miss accounting and pattern tracking
// belong to the engine's access path. Expired entries are removed
// lazily.
func (n *Namespace[V]) Get(key string, ttl time.Duration) (V, bool, error) {
	var zero V
	if err := n.acquire(); err != nil {
		return zero, false, err
	}
	defer n.release()

	entry, ok := n.entries[key]
	if !ok {
		return zero, false, nil
	}
	if entry.expired(n.clock.Now(), ttl) {
		delete(n.entries, key)
		return zero, false, nil
	}
	return entry.Value, true, nil
}

// access is the engine's combined hit path: on a fresh entry it bumps
// the entry metadata, records the access pattern, and counts a hit; on
// absence or expiry it counts a miss. The whole step runs under one
// lock acquisition so check-then-update is atomic.
func (n *Namespace[V]) access(key string, ttl time.Duration) (V, bool, error) {
	var zero V
	if err := n.acquire(); err != nil {
		return zero, false, err
	}
	defer n.release()

	now := n.clock.Now()
	entry, ok := n.entries[key]
	if !ok || entry.expired(now, ttl) {
		if ok {
			delete(n.entries, key)
		}
		n.misses++
		return zero, false, nil
	}

	entry.touch(now)
	n.tracker.Record(key, now)
	n.hits++
	n.observeAccessTimeLocked(n.clock.Now().Sub(now))
	return entry.Value, true, nil
}

// Set inserts or overwrites key. A new insert into a full namespace
// first evicts ceil(size*0.2) entries via the configured strategy.
// Priority is recomputed from the computation cost and the key's
// tracked frequency and recency.
func (n *Namespace[V]) Set(key string, value V, cost time.Duration) error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()

	now := n.clock.Now()
	_, exists := n.entries[key]
	if !exists && len(n.entries) >= n.maxSize {
		n.evictLocked(int(math.Ceil(float64(len(n.entries)) * evictionFraction)), now)
	}

	n.tracker.Record(key, now)
	n.seq++
	entry := &Entry[V]{
		Key:             key,
		Value:           value,
		CreatedAt:       now,
		LastAccessedAt:  now,
		AccessCount:     1,
		ComputationCost: cost,
		Tags:            tagsFromKey(key),
		seq:             n.seq,
	}
	entry.Priority = n.priorityLocked(key, cost, now)
	n.entries[key] = entry
	return nil
}

// priorityLocked derives the entry priority from computation cost and
// the tracked access pattern:
//
//	0.4*costMs + 0.4*frequency + 0.2*(1/(recencyMs+1))
//
// Unknown keys default to frequency 1 and recency 0.
func (n *Namespace[V]) priorityLocked(key string, cost time.Duration, now time.Time) float64 {
	frequency := float64(1)
	recency := float64(0)
	if p, ok := n.tracker.Snapshot(key); ok {
		frequency = float64(p.Frequency)
		recency = millis(now.Sub(p.LastAccess))
	}
	return 0.4*millis(cost) + 0.4*frequency + 0.2*(1.0/(recency+1.0))
}

// Evict removes count entries chosen by the namespace's strategy and
// returns how many were removed.
func (n *Namespace[V]) Evict(count int) (int, error) {
	if err := n.acquire(); err != nil {
		return 0, err
	}
	defer n.release()
	return n.evictLocked(count, n.clock.Now()), nil
}

func (n *Namespace[V]) evictLocked(count int, now time.Time) int {
	if count <= 0 || len(n.entries) == 0 {
		return 0
	}

	victims := n.strategy.Victims(n.snapshotLocked(), count, now)
	for _, key := range victims {
		delete(n.entries, key)
	}
	n.evictions += uint64(len(victims))
	return len(victims)
}

// snapshotLocked returns entry metadata in insertion order, the stable
// base ordering every strategy ranks against.
func (n *Namespace[V]) snapshotLocked() []types.EntryInfo {
	ordered := make([]*Entry[V], 0, len(n.entries))
	for _, entry := range n.entries {
		ordered = append(ordered, entry)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	infos := make([]types.EntryInfo, len(ordered))
	for i, entry := range ordered {
		infos[i] = entry.info()
	}
	return infos
}

// SweepExpired removes every entry whose age has reached ttl. The sweep
// runs independently of capacity pressure and does not count against
// the eviction statistic.
func (n *Namespace[V]) SweepExpired(ttl time.Duration) (int, error) {
	if err := n.acquire(); err != nil {
		return 0, err
	}
	defer n.release()

	now := n.clock.Now()
	removed := 0
	for key, entry := range n.entries {
		if entry.expired(now, ttl) {
			delete(n.entries, key)
			removed++
		}
	}
	return removed, nil
}

// SweepStalePatterns garbage-collects access patterns unused for longer
// than staleness.
func (n *Namespace[V]) SweepStalePatterns(staleness time.Duration) (int, error) {
	if err := n.acquire(); err != nil {
		return 0, err
	}
	defer n.release()
	return n.tracker.SweepStale(n.clock.Now(), staleness), nil
}

// Invalidate removes a single entry. It reports whether the key was
// present.
func (n *Namespace[V]) Invalidate(key string) (bool, error) {
	if err := n.acquire(); err != nil {
		return false, err
	}
	defer n.release()

	_, ok := n.entries[key]
	delete(n.entries, key)
	return ok, nil
}

// Clear destroys every entry. Access patterns survive a clear; they are
// bounded separately by the staleness sweep.
func (n *Namespace[V]) Clear() error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()

	n.entries = make(map[string]*Entry[V])
	return nil
}

// Len returns the current entry count.
func (n *Namespace[V]) Len() (int, error) {
	if err := n.acquire(); err != nil {
		return 0, err
	}
	defer n.release()
	return len(n.entries), nil
}

// Stats returns a statistics snapshot.
func (n *Namespace[V]) Stats() (types.CacheStats, error) {
	if err := n.acquire(); err != nil {
		return types.CacheStats{}, err
	}
	defer n.release()

	total := n.hits + n.misses
	if total == 0 {
		total = 1
	}
	return types.CacheStats{
		Namespace:         n.name,
		Hits:              n.hits,
		Misses:            n.misses,
		Evictions:         n.evictions,
		Size:              len(n.entries),
		MaxSize:           n.maxSize,
		HitRate:           float64(n.hits) / float64(total),
		AverageAccessTime: time.Duration(n.avgAccessTime),
	}, nil
}

// observeAccessTime folds one access duration into the smoothed
// average. Used by the engine for the miss-then-compute path.
func (n *Namespace[V]) observeAccessTime(d time.Duration) error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()
	n.observeAccessTimeLocked(d)
	return nil
}

func (n *Namespace[V]) observeAccessTimeLocked(d time.Duration) {
	sample := float64(d)
	if n.avgAccessTime == 0 {
		n.avgAccessTime = sample
		return
	}
	n.avgAccessTime = (1-accessTimeAlpha)*n.avgAccessTime + accessTimeAlpha*sample
}

// recordAccessPattern records an access without touching entries. Used
// for callers joined onto a shared in-flight computation, whose access
// would otherwise go untracked.
func (n *Namespace[V]) recordAccessPattern(key string) error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()
	n.tracker.Record(key, n.clock.Now())
	return nil
}

// PreloadCandidates gathers this namespace's preload candidates: keys
// whose predicted next access falls within window of now, plus keys
// whose tracked frequency reaches minFrequency. Keys already cached and
// fresh under ttl are skipped.
func (n *Namespace[V]) PreloadCandidates(window, ttl time.Duration, minFrequency int64, topN int) ([]types.PreloadCandidate, error) {
	if err := n.acquire(); err != nil {
		return nil, err
	}
	defer n.release()

	now := n.clock.Now()
	seen := make(map[string]bool)
	var candidates []types.PreloadCandidate

	cached := func(key string) bool {
		entry, ok := n.entries[key]
		return ok && !entry.expired(now, ttl)
	}

	for _, p := range n.tracker.Upcoming(now, window) {
		if seen[p.Key] || cached(p.Key) {
			continue
		}
		seen[p.Key] = true
		candidates = append(candidates, types.PreloadCandidate{
			Namespace:   n.name,
			Key:         p.Key,
			Source:      "predicted",
			PredictedAt: p.PredictedNextAccess,
			Frequency:   p.Frequency,
		})
	}

	for _, key := range n.tracker.Popular(minFrequency, topN) {
		if seen[key] || cached(key) {
			continue
		}
		seen[key] = true
		p, _ := n.tracker.Snapshot(key)
		candidates = append(candidates, types.PreloadCandidate{
			Namespace: n.name,
			Key:       key,
			Source:    "popular",
			Frequency: p.Frequency,
		})
	}

	return candidates, nil
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"

	"github.com/adaptcache/adaptcache/internal/config"
	"github.com/adaptcache/adaptcache/internal/logging"
	"github.com/adaptcache/adaptcache/internal/metrics"
	cacheerrors "github.com/adaptcache/adaptcache/pkg/errors"
	"github.com/adaptcache/adaptcache/pkg/retry"
	"github.com/adaptcache/adaptcache/pkg/types"
)

// Engine is the multi-namespace adaptive cache. It owns the namespaces,
// runs the periodic cleanup and predictive preload tasks, and exposes
// the get/set/invalidate/stats surface.
//
// Namespaces are fully independent: there is no cross-namespace locking
// and each namespace carries its own statistics, eviction strategy
// instance, and access pattern tracker.
type Engine[V any] struct {
	cfg     *config.Config
	clock   types.Clock
	logger  log.Logger
	metrics *metrics.Collector
	loader  types.Loader[V]

	mu         sync.RWMutex
	namespaces map[string]*Namespace[V]

	// flight coalesces concurrent misses on the same key when
	// configured to do so.
	flight singleflight.Group

	preload *PreloadScheduler[V]

	// sweepRetry retries cleanup sweeps that lose the namespace lock
	// race, instead of waiting a full tick.
	sweepRetry *retry.Retryer

	// evictionsSeen tracks the last reported eviction count per
	// namespace. Only the cleanup task reads or writes it.
	evictionsSeen map[string]uint64

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
}

// Option configures an Engine at construction time.
type Option[V any] func(*Engine[V])

// WithClock injects the time source. Tests use a manual clock.
func WithClock[V any](clock types.Clock) Option[V] {
	return func(e *Engine[V]) { e.clock = clock }
}

// WithLogger injects the structured logger.
func WithLogger[V any](logger log.Logger) Option[V] {
	return func(e *Engine[V]) { e.logger = logger }
}

// WithMetrics injects the metrics collector.
func WithMetrics[V any](collector *metrics.Collector) Option[V] {
	return func(e *Engine[V]) { e.metrics = collector }
}

// WithLoader injects the preload loader.
func WithLoader[V any](loader types.Loader[V]) Option[V] {
	return func(e *Engine[V]) { e.loader = loader }
}

// New creates a cache engine. A nil config uses defaults; an invalid
// configuration fails fast.
func New[V any](cfg *config.Config, opts ...Option[V]) (*Engine[V], error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := StrategyFor(cfg.Strategy); err != nil {
		return nil, err
	}

	e := &Engine[V]{
		cfg:           cfg,
		clock:         types.SystemClock(),
		logger:        logging.NewDefault(cfg.Monitoring.LogLevel),
		namespaces:    make(map[string]*Namespace[V]),
		evictionsSeen: make(map[string]uint64),
		sweepRetry: retry.New(retry.Config{
			MaxAttempts:  2,
			InitialDelay: 5 * time.Millisecond,
			Jitter:       true,
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.preload = newPreloadScheduler(e)
	return e, nil
}

// SetLoader injects the loader used by predictive preload. Preload
// ticks without a loader are no-ops.
func (e *Engine[V]) SetLoader(loader types.Loader[V]) {
	e.loader = loader
}

// namespace returns the named namespace, creating it on first use.
func (e *Engine[V]) namespace(name string) *Namespace[V] {
	e.mu.RLock()
	ns, ok := e.namespaces[name]
	e.mu.RUnlock()
	if ok {
		return ns
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ns, ok = e.namespaces[name]; ok {
		return ns
	}
	// Strategy validated at construction.
	strategy, _ := StrategyFor(e.cfg.Strategy)
	ns = NewNamespace[V](name, e.cfg.MaxSize, e.cfg.LockTimeout, strategy, e.clock)
	e.namespaces[name] = ns
	return ns
}

// namespacesSnapshot returns a point-in-time copy of the namespace map
// for the background tasks.
func (e *Engine[V]) namespacesSnapshot() map[string]*Namespace[V] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := make(map[string]*Namespace[V], len(e.namespaces))
	for name, ns := range e.namespaces {
		snapshot[name] = ns
	}
	return snapshot
}

// Get returns the cached value for key while it is younger than ttl.
// On a miss with a compute function the value is computed, stored, and
// returned; compute failures propagate to the caller and nothing is
// stored. On a miss without a compute function ok is false. A
// non-positive ttl uses the configured default.
func (e *Engine[V]) Get(ctx context.Context, namespace, key string, ttl time.Duration, compute types.ComputeFunc[V]) (V, bool, error) {
	var zero V
	if ttl <= 0 {
		ttl = e.cfg.TTL
	}

	ns := e.namespace(namespace)
	start := e.clock.Now()

	value, ok, err := ns.access(key, ttl)
	if err != nil {
		return zero, false, err
	}
	if ok {
		e.metrics.ObserveAccess(namespace, true, e.clock.Now().Sub(start))
		return value, true, nil
	}
	if compute == nil {
		e.metrics.ObserveAccess(namespace, false, e.clock.Now().Sub(start))
		return zero, false, nil
	}

	if e.cfg.CoalesceMisses {
		result, err, shared := e.flight.Do(namespace+"\x00"+key, func() (any, error) {
			return e.computeAndStore(ctx, ns, key, compute)
		})
		elapsed := e.clock.Now().Sub(start)
		e.metrics.ObserveAccess(namespace, false, elapsed)
		if err != nil {
			return zero, false, err
		}
		if shared {
			if recErr := ns.recordAccessPattern(key); recErr != nil {
				level.Warn(e.logger).Log("msg", "access pattern record failed", "namespace", namespace, "key", key, "err", recErr)
			}
		}
		return result.(V), true, nil
	}

	computed, err := e.computeAndStore(ctx, ns, key, compute)
	elapsed := e.clock.Now().Sub(start)
	e.metrics.ObserveAccess(namespace, false, elapsed)
	if err != nil {
		return zero, false, err
	}
	return computed, true, nil
}

// computeAndStore runs the compute function outside the namespace lock,
// then stores the result. Two concurrent computes for one key are both
// allowed; the later write wins.
func (e *Engine[V]) computeAndStore(ctx context.Context, ns *Namespace[V], key string, compute types.ComputeFunc[V]) (V, error) {
	var zero V

	start := e.clock.Now()
	value, err := compute(ctx)
	cost := e.clock.Now().Sub(start)
	if err != nil {
		return zero, cacheerrors.Wrap(err, cacheerrors.ErrCodeComputeFailed, "compute fn failed").
			WithComponent("engine").
			WithOperation("get").
			WithDetail("key", key)
	}

	if err := ns.Set(key, value, cost); err != nil {
		return zero, err
	}
	if err := ns.observeAccessTime(cost); err != nil {
		return zero, err
	}
	return value, nil
}

// Set writes a value directly, bypassing compute.
func (e *Engine[V]) Set(namespace, key string, value V, cost time.Duration) error {
	return e.namespace(namespace).Set(key, value, cost)
}

// Invalidate removes one entry, or clears the whole namespace when key
// is empty. Unknown namespaces are a no-op.
func (e *Engine[V]) Invalidate(namespace, key string) error {
	e.mu.RLock()
	ns, ok := e.namespaces[namespace]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	if key == "" {
		return ns.Clear()
	}
	_, err := ns.Invalidate(key)
	return err
}

// Stats returns the statistics snapshot for one namespace. ok is false
// for namespaces the engine has never seen.
func (e *Engine[V]) Stats(namespace string) (types.CacheStats, bool, error) {
	e.mu.RLock()
	ns, ok := e.namespaces[namespace]
	e.mu.RUnlock()
	if !ok {
		return types.CacheStats{}, false, nil
	}
	stats, err := ns.Stats()
	if err != nil {
		return types.CacheStats{}, false, err
	}
	return stats, true, nil
}

// StatsAll returns statistics snapshots for every namespace.
func (e *Engine[V]) StatsAll() (map[string]types.CacheStats, error) {
	result := make(map[string]types.CacheStats)
	for name, ns := range e.namespacesSnapshot() {
		stats, err := ns.Stats()
		if err != nil {
			return nil, err
		}
		result[name] = stats
	}
	return result, nil
}

// Start launches the background cleanup and preload tasks. Non-positive
// intervals fall back to the configured defaults. Starting a running
// engine is an error.
func (e *Engine[V]) Start(cleanupInterval, preloadInterval time.Duration) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.running {
		return cacheerrors.New(cacheerrors.ErrCodeAlreadyStarted, "background tasks already running").
			WithComponent("engine")
	}

	if cleanupInterval <= 0 {
		cleanupInterval = e.cfg.CleanupInterval
	}
	if preloadInterval <= 0 {
		preloadInterval = e.cfg.Preload.Interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go e.cleanupLoop(ctx, cleanupInterval)

	if e.cfg.Preload.Enabled {
		e.wg.Add(1)
		go e.preloadLoop(ctx, preloadInterval)
	}

	e.running = true
	level.Debug(e.logger).Log("msg", "background tasks started",
		"cleanup_interval", cleanupInterval, "preload_interval", preloadInterval)
	return nil
}

// Stop cancels the background tasks and waits for any in-flight tick to
// finish. No new tick starts after Stop returns. Stopping a stopped
// engine is a no-op.
func (e *Engine[V]) Stop() {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if !e.running {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.running = false
	level.Debug(e.logger).Log("msg", "background tasks stopped")
}

func (e *Engine[V]) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runCleanupOnce()
		}
	}
}

func (e *Engine[V]) preloadLoop(ctx context.Context, interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.preload.RunOnce(ctx)
		}
	}
}

// runCleanupOnce sweeps expired entries and stale access patterns in
// every namespace, refreshes gauges, and emits the low-hit-rate signal
// where the threshold is undercut. Lock timeouts skip the namespace;
// the next tick retries.
func (e *Engine[V]) runCleanupOnce() {
	for name, ns := range e.namespacesSnapshot() {
		var expired, stale int
		err := e.sweepRetry.Do(func() error {
			var sweepErr error
			expired, sweepErr = ns.SweepExpired(e.cfg.TTL)
			return sweepErr
		})
		if err != nil {
			level.Warn(e.logger).Log("msg", "expiry sweep skipped", "namespace", name, "err", err)
			continue
		}
		err = e.sweepRetry.Do(func() error {
			var sweepErr error
			stale, sweepErr = ns.SweepStalePatterns(e.cfg.PatternStaleness)
			return sweepErr
		})
		if err != nil {
			level.Warn(e.logger).Log("msg", "pattern sweep skipped", "namespace", name, "err", err)
			continue
		}
		if expired > 0 || stale > 0 {
			level.Debug(e.logger).Log("msg", "cleanup sweep", "namespace", name,
				"expired", expired, "stale_patterns", stale)
		}

		stats, err := ns.Stats()
		if err != nil {
			continue
		}
		e.metrics.UpdateStats(stats)
		if delta := stats.Evictions - e.evictionsSeen[name]; delta > 0 {
			e.metrics.AddEvictions(name, int(delta))
			e.evictionsSeen[name] = stats.Evictions
		}

		if stats.TotalRequests() > 0 && stats.HitRate < e.cfg.Adaptive.HitRateThreshold {
			level.Info(e.logger).Log("msg", "hit rate below threshold", "namespace", name,
				"hit_rate", stats.HitRate, "threshold", e.cfg.Adaptive.HitRateThreshold)
			e.metrics.LowHitRate(name)
		}
	}
}

package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/adaptcache/adaptcache/pkg/types"
)

// PreloadScheduler populates entries ahead of demand. Each run gathers
// candidate keys from three sources: access predictions falling within
// the preload window, keys whose tracked frequency crosses the
// popularity threshold, and the configured "namespace/key" seed list.
// The combined set is capped and loaded in small rate-limited batches
// so a preload burst cannot starve the foreground request path.
type PreloadScheduler[V any] struct {
	engine  *Engine[V]
	limiter *rate.Limiter
}

func newPreloadScheduler[V any](e *Engine[V]) *PreloadScheduler[V] {
	batch := e.cfg.Preload.BatchSize
	if batch <= 0 {
		batch = 1
	}
	return &PreloadScheduler[V]{
		engine:  e,
		limiter: rate.NewLimiter(rate.Limit(batch), batch),
	}
}

// RunOnce executes a single preload tick. Loader failures are logged
// and skipped; they never surface to the scheduler's caller.
func (s *PreloadScheduler[V]) RunOnce(ctx context.Context) {
	e := s.engine
	if e.loader == nil {
		return
	}

	cfg := e.cfg.Preload
	runID := uuid.NewString()[:8]

	candidates := s.gather()
	if len(candidates) == 0 {
		return
	}
	level.Debug(e.logger).Log("msg", "preload tick", "run", runID, "candidates", len(candidates))

	for start := 0; start < len(candidates); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		if err := s.limiter.WaitN(ctx, len(batch)); err != nil {
			// Engine stopping; the dispatched batches have completed.
			return
		}

		var wg sync.WaitGroup
		for _, candidate := range batch {
			wg.Add(1)
			go func(c types.PreloadCandidate) {
				defer wg.Done()
				s.load(ctx, c, runID)
			}(candidate)
		}
		wg.Wait()
	}
}

// gather collects and caps the candidate set across all namespaces.
func (s *PreloadScheduler[V]) gather() []types.PreloadCandidate {
	e := s.engine
	cfg := e.cfg.Preload

	seen := make(map[string]bool)
	var candidates []types.PreloadCandidate
	add := func(c types.PreloadCandidate) {
		id := c.Namespace + "\x00" + c.Key
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, c)
		}
	}

	for _, ns := range e.namespacesSnapshot() {
		found, err := ns.PreloadCandidates(cfg.Window, e.cfg.TTL,
			e.cfg.Adaptive.AccessFrequencyThreshold, cfg.MaxItems)
		if err != nil {
			level.Warn(e.logger).Log("msg", "candidate scan skipped", "namespace", ns.name, "err", err)
			continue
		}
		for _, c := range found {
			add(c)
		}
	}

	for _, seed := range cfg.PopularKeys {
		nsName, key, ok := strings.Cut(seed, "/")
		if !ok || nsName == "" || key == "" {
			level.Warn(e.logger).Log("msg", "malformed preload seed", "seed", seed)
			continue
		}
		if _, cached, err := e.namespace(nsName).Get(key, e.cfg.TTL); err != nil || cached {
			continue
		}
		add(types.PreloadCandidate{Namespace: nsName, Key: key, Source: "seed"})
	}

	if len(candidates) > cfg.MaxItems {
		candidates = candidates[:cfg.MaxItems]
	}
	return candidates
}

// load fetches one candidate through the caller-supplied loader and
// stores it with the observed load duration as computation cost.
func (s *PreloadScheduler[V]) load(ctx context.Context, c types.PreloadCandidate, runID string) {
	e := s.engine

	start := e.clock.Now()
	value, err := e.loader(ctx, c.Namespace, c.Key)
	cost := e.clock.Now().Sub(start)
	if err != nil {
		level.Warn(e.logger).Log("msg", "preload failed", "run", runID,
			"namespace", c.Namespace, "key", c.Key, "source", c.Source, "err", err)
		e.metrics.ObservePreload(c.Namespace, false)
		return
	}

	if err := e.Set(c.Namespace, c.Key, value, cost); err != nil {
		level.Warn(e.logger).Log("msg", "preload store failed", "run", runID,
			"namespace", c.Namespace, "key", c.Key, "err", err)
		e.metrics.ObservePreload(c.Namespace, false)
		return
	}
	e.metrics.ObservePreload(c.Namespace, true)
}

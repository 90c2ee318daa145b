package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"

	"github.com/adaptcache/adaptcache/internal/config"
	"github.com/adaptcache/adaptcache/pkg/types"
)

// testLoader fabricates "namespace/key" values and records every call.
type testLoader struct {
	mu     sync.Mutex
	loaded []string
	fail   map[string]bool
}

func (l *testLoader) load(_ context.Context, namespace, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := namespace + "/" + key
	if l.fail[id] {
		return "", errors.New("source unavailable")
	}
	l.loaded = append(l.loaded, id)
	return "loaded:" + id, nil
}

func (l *testLoader) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loaded...)
}

func preloadConfig() *config.Config {
	cfg := testConfig()
	cfg.Preload.Enabled = true
	cfg.Preload.Window = time.Minute
	cfg.Preload.MaxItems = 50
	cfg.Preload.BatchSize = 5
	cfg.Adaptive.AccessFrequencyThreshold = 100
	return cfg
}

// recordPattern drives three accesses ending at last, spaced by interval,
// building a prediction of last+interval.
func recordPattern(e *Engine[string], namespace, key string, interval, last time.Duration) {
	ns := e.namespace(namespace)
	ns.tracker.Record(key, at(last-2*interval))
	ns.tracker.Record(key, at(last-interval))
	ns.tracker.Record(key, at(last))
}

func TestPreloadWindowSelection(t *testing.T) {
	t.Parallel()

	clock := newManualClock(at(2 * time.Minute))
	loader := &testLoader{}
	e, err := New[string](preloadConfig(), WithClock[string](clock), WithLoader[string](loader.load), WithLogger[string](log.NewNopLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Predicted now+30s: inside the 60s window.
	recordPattern(e, "stats", "soon", 30*time.Second, 2*time.Minute)
	// Predicted now+120s: outside the window, not loaded.
	recordPattern(e, "stats", "later", 2*time.Minute, 2*time.Minute)

	e.preload.RunOnce(context.Background())

	calls := loader.calls()
	if len(calls) != 1 || calls[0] != "stats/soon" {
		t.Fatalf("loaded %v, want [stats/soon]", calls)
	}

	// The preloaded entry serves the next get without computing.
	value, ok, err := e.Get(context.Background(), "stats", "soon", 0, nil)
	if err != nil || !ok || value != "loaded:stats/soon" {
		t.Errorf("Get = (%q, %v, %v), want preloaded hit", value, ok, err)
	}
}

func TestPreloadSkipsCachedKeys(t *testing.T) {
	t.Parallel()

	clock := newManualClock(at(2 * time.Minute))
	loader := &testLoader{}
	e, err := New[string](preloadConfig(), WithClock[string](clock), WithLoader[string](loader.load), WithLogger[string](log.NewNopLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	recordPattern(e, "stats", "warm", 30*time.Second, 2*time.Minute)
	if err := e.Set("stats", "warm", "already-here", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e.preload.RunOnce(context.Background())
	if calls := loader.calls(); len(calls) != 0 {
		t.Errorf("loaded %v, want nothing for cached keys", calls)
	}
}

func TestPreloadPopularKeys(t *testing.T) {
	t.Parallel()

	clock := newManualClock(at(time.Minute))
	loader := &testLoader{}
	cfg := preloadConfig()
	cfg.Adaptive.AccessFrequencyThreshold = 2
	e, err := New[string](cfg, WithClock[string](clock), WithLoader[string](loader.load), WithLogger[string](log.NewNopLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Two accesses: popular by threshold, but too few samples for a
	// prediction.
	ns := e.namespace("stats")
	ns.tracker.Record("hot", at(time.Minute))
	ns.tracker.Record("hot", at(time.Minute))

	e.preload.RunOnce(context.Background())

	calls := loader.calls()
	if len(calls) != 1 || calls[0] != "stats/hot" {
		t.Errorf("loaded %v, want [stats/hot]", calls)
	}
}

func TestPreloadSeeds(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	loader := &testLoader{}
	cfg := preloadConfig()
	cfg.Preload.PopularKeys = []string{"stats/hero:atk", "malformed", "layout/grid"}
	e, err := New[string](cfg, WithClock[string](clock), WithLoader[string](loader.load), WithLogger[string](log.NewNopLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// One seed already cached: only the other valid seed loads.
	if err := e.Set("layout", "grid", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e.preload.RunOnce(context.Background())

	calls := loader.calls()
	if len(calls) != 1 || calls[0] != "stats/hero:atk" {
		t.Errorf("loaded %v, want [stats/hero:atk]", calls)
	}
}

func TestPreloadLoaderFailureSkipsKey(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	loader := &testLoader{fail: map[string]bool{"stats/bad": true}}
	cfg := preloadConfig()
	cfg.Preload.PopularKeys = []string{"stats/bad", "stats/good"}
	e, err := New[string](cfg, WithClock[string](clock), WithLoader[string](loader.load), WithLogger[string](log.NewNopLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Failures are swallowed; the other candidate still loads.
	e.preload.RunOnce(context.Background())

	calls := loader.calls()
	if len(calls) != 1 || calls[0] != "stats/good" {
		t.Errorf("loaded %v, want [stats/good]", calls)
	}
	if _, ok, _ := e.Get(context.Background(), "stats", "bad", 0, nil); ok {
		t.Error("failed preload left an entry behind")
	}
}

func TestPreloadCandidateCap(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	loader := &testLoader{}
	cfg := preloadConfig()
	cfg.Preload.MaxItems = 3
	seeds := make([]string, 10)
	for i := range seeds {
		seeds[i] = fmt.Sprintf("stats/k%02d", i)
	}
	cfg.Preload.PopularKeys = seeds
	e, err := New[string](cfg, WithClock[string](clock), WithLoader[string](loader.load), WithLogger[string](log.NewNopLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.preload.RunOnce(context.Background())

	if calls := loader.calls(); len(calls) != 3 {
		t.Errorf("loaded %d candidates, want the cap of 3", len(calls))
	}
}

func TestPreloadWithoutLoader(t *testing.T) {
	t.Parallel()

	clock := newManualClock(at(2 * time.Minute))
	e := newTestEngine(t, preloadConfig(), clock)
	recordPattern(e, "stats", "soon", 30*time.Second, 2*time.Minute)

	// No loader: the tick is a no-op, not a panic.
	e.preload.RunOnce(context.Background())

	if _, ok, _ := e.Get(context.Background(), "stats", "soon", 0, nil); ok {
		t.Error("entry appeared without a loader")
	}
}

func TestPreloadDedupAcrossSources(t *testing.T) {
	t.Parallel()

	clock := newManualClock(at(2 * time.Minute))
	loader := &testLoader{}
	cfg := preloadConfig()
	cfg.Adaptive.AccessFrequencyThreshold = 2
	cfg.Preload.PopularKeys = []string{"stats/soon"}
	e, err := New[string](cfg, WithClock[string](clock), WithLoader[string](loader.load), WithLogger[string](log.NewNopLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Predicted, popular, and seeded all at once: loaded exactly once.
	recordPattern(e, "stats", "soon", 30*time.Second, 2*time.Minute)

	e.preload.RunOnce(context.Background())

	if calls := loader.calls(); len(calls) != 1 {
		t.Errorf("loaded %v, want a single deduplicated load", calls)
	}

	var scenario []types.PreloadCandidate
	scenario, err = e.namespace("stats").PreloadCandidates(cfg.Preload.Window, cfg.TTL, 2, 10)
	if err != nil {
		t.Fatalf("PreloadCandidates: %v", err)
	}
	// The entry is cached now, so a fresh scan offers nothing.
	if len(scenario) != 0 {
		t.Errorf("candidates after load = %v, want none", scenario)
	}
}

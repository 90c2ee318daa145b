/*
Package types provides the core interfaces, data structures, and type
definitions shared across the adaptive cache engine.

This package establishes the contracts between the engine's components
and the snapshots they exchange, keeping the implementation packages
decoupled from one another.

# Core Types

Strategy: names the eviction strategy variants (LRU, LFU, FIFO,
Adaptive) that a namespace can be configured with.

CacheStats: the per-namespace statistics record (hits, misses,
evictions, size, hit rate, smoothed average access time).

EntryInfo: an immutable metadata view of a cached entry. Eviction
strategies rank these snapshots instead of live entries, which keeps
strategies stateless and safe to share.

PatternInfo / PreloadCandidate: snapshots produced by the access
pattern tracker and consumed by the preload scheduler.

# Core Interfaces

Clock: injectable time source. Production code uses SystemClock;
tests drive a manual clock to make TTL expiry, eviction scoring, and
access prediction fully deterministic.

ComputeFunc / Loader: the two caller-supplied entry points through
which domain logic produces cacheable values. ComputeFunc serves the
synchronous miss path of Get; Loader serves the background preload
path. The engine treats both values as opaque.
*/
package types

/*
Package cache implements the adaptive multi-namespace cache engine.

The engine memoizes expensive derived values behind opaque string keys,
enforces time-based expiry, evicts under configurable strategies, and
predicts future accesses to preload entries ahead of demand.

# Architecture

	┌─────────────────────────────────────────────┐
	│                  Callers                    │
	│      (compute fns, loaders, domain code)    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│                  Engine                     │  ← this package
	│   get / set / invalidate / stats / start    │
	└─────────────────────────────────────────────┘
	        │                          │
	┌───────┴──────────┐    ┌──────────┴──────────┐
	│   Namespace (N)  │    │  Background tasks   │
	│  entries + stats │    │  cleanup sweep      │
	│  eviction strat. │    │  preload scheduler  │
	│  pattern tracker │    └─────────────────────┘
	└──────────────────┘

Each namespace is an independently bounded partition with its own
statistics, eviction strategy instance, and access pattern tracker. All
of a namespace's mutable state sits behind a single bounded-wait lock;
there is no cross-namespace locking.

# Eviction

Four strategies rank entries for removal, most disposable first: LRU
(by last access), LFU (by access count), FIFO (by creation time), and
Adaptive, which scores entries by a weighted blend of priority, access
frequency, recency, and age. Ranking is a stable sort over insertion
order, so eviction is deterministic.

A namespace at capacity evicts ceil(size*0.2) entries before accepting
a new insert. An independent periodic sweep removes expired entries
regardless of capacity pressure.

# Prediction and preload

The tracker keeps a bounded ring of access timestamps per key and
derives the predicted next access from the mean interval between
consecutive accesses. The preload scheduler turns predictions that fall
within the preload window, plus historically popular keys and
configured seeds, into batched loader calls that populate entries
before they are asked for.
*/
package cache

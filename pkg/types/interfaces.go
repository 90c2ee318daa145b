package types

import (
	"context"
	"time"
)

// Clock abstracts the time source so engine behavior (TTL expiry,
// eviction scoring, access prediction) is deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// ComputeFunc produces the value for a cache key on miss. Errors are
// propagated to the caller of Get; nothing is stored on failure.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// Loader fetches a value during predictive preload. Loader failures
// are logged and skipped; they never surface outside the background
// task.
type Loader[V any] func(ctx context.Context, namespace, key string) (V, error)

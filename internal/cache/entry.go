package cache

import (
	"strings"
	"time"

	"github.com/adaptcache/adaptcache/pkg/types"
)

// Entry represents a single cached value plus its bookkeeping metadata.
// Entries are owned exclusively by their namespace and must only be
// touched while holding the namespace lock.
type Entry[V any] struct {
	Key             string
	Value           V
	CreatedAt       time.Time
	LastAccessedAt  time.Time
	AccessCount     int64
	ComputationCost time.Duration
	Priority        float64
	Tags            []string

	// seq is the namespace-wide insertion sequence, used to make
	// eviction ordering deterministic under ties.
	seq uint64
}

// touch bumps the access metadata on a hit.
func (e *Entry[V]) touch(now time.Time) {
	e.LastAccessedAt = now
	e.AccessCount++
}

// expired reports whether the entry's age has reached ttl.
func (e *Entry[V]) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) >= ttl
}

// info returns an immutable metadata snapshot for eviction ranking.
func (e *Entry[V]) info() types.EntryInfo {
	tags := make([]string, len(e.Tags))
	copy(tags, e.Tags)
	return types.EntryInfo{
		Key:             e.Key,
		CreatedAt:       e.CreatedAt,
		LastAccessedAt:  e.LastAccessedAt,
		AccessCount:     e.AccessCount,
		ComputationCost: e.ComputationCost,
		Priority:        e.Priority,
		Tags:            tags,
	}
}

// tagsFromKey derives the entry's tag set from its key segments.
// Keys follow a "subject:qualifier:..." convention; each segment
// becomes a tag for future filtering.
func tagsFromKey(key string) []string {
	segments := strings.Split(key, ":")
	tags := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg != "" {
			tags = append(tags, seg)
		}
	}
	return tags
}

package types

import (
	"time"
)

// Strategy identifies an eviction strategy variant.
type Strategy string

// Supported eviction strategies.
const (
	StrategyLRU      Strategy = "lru"
	StrategyLFU      Strategy = "lfu"
	StrategyFIFO     Strategy = "fifo"
	StrategyAdaptive Strategy = "adaptive"
)

// Valid reports whether s names a supported eviction strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLRU, StrategyLFU, StrategyFIFO, StrategyAdaptive:
		return true
	}
	return false
}

// CacheStats represents per-namespace cache performance statistics
type CacheStats struct {
	Namespace         string        `json:"namespace"`
	Hits              uint64        `json:"hits"`
	Misses            uint64        `json:"misses"`
	Evictions         uint64        `json:"evictions"`
	Size              int           `json:"size"`
	MaxSize           int           `json:"max_size"`
	HitRate           float64       `json:"hit_rate"`
	AverageAccessTime time.Duration `json:"average_access_time"`
}

// TotalRequests returns the number of get operations observed.
func (s CacheStats) TotalRequests() uint64 {
	return s.Hits + s.Misses
}

// EntryInfo is a read-only metadata snapshot of a cached entry.
// Eviction strategies rank entries through this view so they never
// touch live namespace state.
type EntryInfo struct {
	Key             string        `json:"key"`
	CreatedAt       time.Time     `json:"created_at"`
	LastAccessedAt  time.Time     `json:"last_accessed_at"`
	AccessCount     int64         `json:"access_count"`
	ComputationCost time.Duration `json:"computation_cost"`
	Priority        float64       `json:"priority"`
	Tags            []string      `json:"tags"`
}

// PatternInfo is a read-only snapshot of a tracked access pattern.
type PatternInfo struct {
	Key                 string    `json:"key"`
	Frequency           int64     `json:"frequency"`
	LastAccess          time.Time `json:"last_access"`
	PredictedNextAccess time.Time `json:"predicted_next_access"`
	HasPrediction       bool      `json:"has_prediction"`
}

// PreloadCandidate represents a key selected for predictive preloading.
type PreloadCandidate struct {
	Namespace   string    `json:"namespace"`
	Key         string    `json:"key"`
	Source      string    `json:"source"` // "predicted", "popular", "seed"
	PredictedAt time.Time `json:"predicted_at,omitempty"`
	Frequency   int64     `json:"frequency"`
}

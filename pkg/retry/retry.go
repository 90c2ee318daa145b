// Package retry provides retry logic with exponential backoff for
// retryable cache operations.
package retry

import (
	stderr "errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/adaptcache/adaptcache/pkg/errors"
)

// Config defines retry behavior configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the
	// initial one.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the factor by which delay increases after each retry.
	Multiplier float64 `yaml:"multiplier"`

	// Jitter adds randomness to delay to prevent thundering herd.
	Jitter bool `yaml:"jitter"`

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// DefaultConfig returns a sensible default retry configuration. The
// defaults suit short lock-contention retries, not long network
// backoffs.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer executes functions with retry on retryable cache errors.
type Retryer struct {
	config Config
}

// New creates a Retryer. Zero values fall back to defaults.
func New(config Config) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 10 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	return &Retryer{config: config}
}

// Do executes fn, retrying while it fails with a retryable cache error.
// Non-retryable errors return immediately.
func (r *Retryer) Do(fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delayFor(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		time.Sleep(delay)
	}

	if shouldRetry(lastErr) {
		return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
	}
	return lastErr
}

// shouldRetry reports whether err carries the retryable flag.
func shouldRetry(err error) bool {
	var cacheErr *errors.CacheError
	if stderr.As(err, &cacheErr) {
		return cacheErr.Retryable
	}
	return false
}

// delayFor computes the backoff before the next attempt.
func (r *Retryer) delayFor(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		delay += delay * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}

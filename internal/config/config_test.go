package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheerrors "github.com/adaptcache/adaptcache/pkg/errors"
	"github.com/adaptcache/adaptcache/pkg/types"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, types.StrategyAdaptive, cfg.Strategy)
	assert.Equal(t, 1000, cfg.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.TTL)
	assert.True(t, cfg.Preload.Enabled)
	assert.False(t, cfg.CoalesceMisses)
	assert.Equal(t, 0.8, cfg.Adaptive.HitRateThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "unknown strategy",
			mutate: func(c *Config) { c.Strategy = "random" },
			errMsg: "invalid strategy",
		},
		{
			name:   "zero max size",
			mutate: func(c *Config) { c.MaxSize = 0 },
			errMsg: "max_size",
		},
		{
			name:   "negative ttl",
			mutate: func(c *Config) { c.TTL = -time.Second },
			errMsg: "ttl",
		},
		{
			name:   "zero lock timeout",
			mutate: func(c *Config) { c.LockTimeout = 0 },
			errMsg: "lock_timeout",
		},
		{
			name:   "zero cleanup interval",
			mutate: func(c *Config) { c.CleanupInterval = 0 },
			errMsg: "cleanup_interval",
		},
		{
			name:   "zero pattern staleness",
			mutate: func(c *Config) { c.PatternStaleness = 0 },
			errMsg: "pattern_staleness",
		},
		{
			name:   "preload enabled without interval",
			mutate: func(c *Config) { c.Preload.Interval = 0 },
			errMsg: "preload.interval",
		},
		{
			name:   "preload enabled without window",
			mutate: func(c *Config) { c.Preload.Window = 0 },
			errMsg: "preload.window",
		},
		{
			name:   "preload enabled without batch size",
			mutate: func(c *Config) { c.Preload.BatchSize = 0 },
			errMsg: "preload.batch_size",
		},
		{
			name:   "hit rate threshold above 1",
			mutate: func(c *Config) { c.Adaptive.HitRateThreshold = 1.5 },
			errMsg: "hit_rate_threshold",
		},
		{
			name:   "negative frequency threshold",
			mutate: func(c *Config) { c.Adaptive.AccessFrequencyThreshold = -1 },
			errMsg: "access_frequency_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Equal(t, cacheerrors.ErrCodeConfigValidation, cacheerrors.CodeOf(err))
		})
	}
}

func TestValidatePreloadDisabledSkipsPreloadChecks(t *testing.T) {
	cfg := NewDefault()
	cfg.Preload.Enabled = false
	cfg.Preload.Interval = 0
	cfg.Preload.Window = 0
	cfg.Preload.MaxItems = 0
	cfg.Preload.BatchSize = 0

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	content := `
strategy: lru
max_size: 250
ttl: 90s
lock_timeout: 2s
preload:
  enabled: true
  interval: 10s
  window: 45s
  popular_keys:
    - stats/hero:atk
  max_items: 20
  batch_size: 4
adaptive_thresholds:
  hit_rate_threshold: 0.6
  access_frequency_threshold: 5
monitoring:
  metrics_enabled: true
  metrics_port: 9400
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromFile(path))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, types.StrategyLRU, cfg.Strategy)
	assert.Equal(t, 250, cfg.MaxSize)
	assert.Equal(t, 90*time.Second, cfg.TTL)
	assert.Equal(t, []string{"stats/hero:atk"}, cfg.Preload.PopularKeys)
	assert.Equal(t, 0.6, cfg.Adaptive.HitRateThreshold)
	assert.True(t, cfg.Monitoring.MetricsEnabled)
	assert.Equal(t, 9400, cfg.Monitoring.MetricsPort)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, cacheerrors.ErrCodeConfigLoad, cacheerrors.CodeOf(err))
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: [unterminated"), 0600))

	cfg := NewDefault()
	err := cfg.LoadFromFile(path)
	require.Error(t, err)
	assert.Equal(t, cacheerrors.ErrCodeConfigLoad, cacheerrors.CodeOf(err))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CACHEENGINE_STRATEGY", "LFU")
	t.Setenv("CACHEENGINE_MAX_SIZE", "42")
	t.Setenv("CACHEENGINE_TTL", "30s")
	t.Setenv("CACHEENGINE_COALESCE_MISSES", "true")
	t.Setenv("CACHEENGINE_PRELOAD_ENABLED", "false")
	t.Setenv("CACHEENGINE_HIT_RATE_THRESHOLD", "0.5")
	t.Setenv("CACHEENGINE_LOG_LEVEL", "debug")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, types.StrategyLFU, cfg.Strategy)
	assert.Equal(t, 42, cfg.MaxSize)
	assert.Equal(t, 30*time.Second, cfg.TTL)
	assert.True(t, cfg.CoalesceMisses)
	assert.False(t, cfg.Preload.Enabled)
	assert.Equal(t, 0.5, cfg.Adaptive.HitRateThreshold)
	assert.Equal(t, "DEBUG", cfg.Monitoring.LogLevel)
}

func TestLoadFromEnvIgnoresUnparsable(t *testing.T) {
	t.Setenv("CACHEENGINE_MAX_SIZE", "not-a-number")
	t.Setenv("CACHEENGINE_TTL", "soon")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, 1000, cfg.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.TTL)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.yaml")

	cfg := NewDefault()
	cfg.Strategy = types.StrategyFIFO
	cfg.MaxSize = 77
	require.NoError(t, cfg.SaveToFile(path))

	loaded := NewDefault()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, types.StrategyFIFO, loaded.Strategy)
	assert.Equal(t, 77, loaded.MaxSize)
	assert.Equal(t, cfg.TTL, loaded.TTL)
}

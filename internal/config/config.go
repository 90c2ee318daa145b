package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	cacheerrors "github.com/adaptcache/adaptcache/pkg/errors"
	"github.com/adaptcache/adaptcache/pkg/types"
)

// Config represents the complete cache engine configuration.
// It is fixed at construction time; the engine never mutates it.
type Config struct {
	// Strategy selects the eviction strategy applied under capacity
	// pressure.
	Strategy types.Strategy `yaml:"strategy"`

	// MaxSize bounds the number of entries per namespace.
	MaxSize int `yaml:"max_size"`

	// TTL is the default time-to-live applied when a caller passes a
	// non-positive TTL to Get.
	TTL time.Duration `yaml:"ttl"`

	// LockTimeout bounds how long a caller waits for a namespace lock
	// before failing with a retryable error.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// CleanupInterval drives the expired-entry sweep and hit-rate check.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// PatternStaleness bounds how long unused access-pattern records are
	// kept before being garbage collected.
	PatternStaleness time.Duration `yaml:"pattern_staleness"`

	// CoalesceMisses collapses concurrent misses on the same key into a
	// single in-flight computation. Off by default: with it off, two
	// simultaneous misses both compute and the second write wins.
	CoalesceMisses bool `yaml:"coalesce_misses"`

	Preload    PreloadConfig      `yaml:"preload"`
	Adaptive   AdaptiveThresholds `yaml:"adaptive_thresholds"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
}

// PreloadConfig represents predictive preload settings.
type PreloadConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval drives the preload scheduler ticks.
	Interval time.Duration `yaml:"interval"`

	// Window is how far ahead of now a predicted access must fall to
	// make the key a preload candidate.
	Window time.Duration `yaml:"window"`

	// PopularKeys seeds the candidate set with "namespace/key" pairs
	// known to be hot regardless of observed traffic.
	PopularKeys []string `yaml:"popular_keys"`

	// MaxItems caps the combined candidate set per tick.
	MaxItems int `yaml:"max_items"`

	// BatchSize bounds how many loads run concurrently so a preload
	// burst cannot starve foreground requests.
	BatchSize int `yaml:"batch_size"`
}

// AdaptiveThresholds represents the thresholds driving adaptive signals.
type AdaptiveThresholds struct {
	// HitRateThreshold is the hit rate below which a namespace emits a
	// low-hit-rate signal during cleanup. Informational only.
	HitRateThreshold float64 `yaml:"hit_rate_threshold"`

	// AccessFrequencyThreshold is the minimum access count for a key to
	// be considered popular by the preload scheduler.
	AccessFrequencyThreshold int64 `yaml:"access_frequency_threshold"`
}

// MonitoringConfig represents metrics and logging settings.
type MonitoringConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPort    int    `yaml:"metrics_port"`
	MetricsPath    string `yaml:"metrics_path"`
	LogLevel       string `yaml:"log_level"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Config {
	return &Config{
		Strategy:         types.StrategyAdaptive,
		MaxSize:          1000,
		TTL:              5 * time.Minute,
		LockTimeout:      5 * time.Second,
		CleanupInterval:  time.Minute,
		PatternStaleness: time.Hour,
		CoalesceMisses:   false,
		Preload: PreloadConfig{
			Enabled:   true,
			Interval:  30 * time.Second,
			Window:    60 * time.Second,
			MaxItems:  50,
			BatchSize: 5,
		},
		Adaptive: AdaptiveThresholds{
			HitRateThreshold:         0.8,
			AccessFrequencyThreshold: 10,
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: false,
			MetricsPort:    8080,
			MetricsPath:    "/metrics",
			LogLevel:       "INFO",
		},
	}
}

// fileConfig mirrors Config for YAML with human-readable durations
// ("90s", "5m"). Absent fields keep their current values.
type fileConfig struct {
	Strategy         string `yaml:"strategy"`
	MaxSize          *int   `yaml:"max_size"`
	TTL              string `yaml:"ttl"`
	LockTimeout      string `yaml:"lock_timeout"`
	CleanupInterval  string `yaml:"cleanup_interval"`
	PatternStaleness string `yaml:"pattern_staleness"`
	CoalesceMisses   *bool  `yaml:"coalesce_misses"`

	Preload struct {
		Enabled     *bool    `yaml:"enabled"`
		Interval    string   `yaml:"interval"`
		Window      string   `yaml:"window"`
		PopularKeys []string `yaml:"popular_keys"`
		MaxItems    *int     `yaml:"max_items"`
		BatchSize   *int     `yaml:"batch_size"`
	} `yaml:"preload"`

	Adaptive struct {
		HitRateThreshold         *float64 `yaml:"hit_rate_threshold"`
		AccessFrequencyThreshold *int64   `yaml:"access_frequency_threshold"`
	} `yaml:"adaptive_thresholds"`

	Monitoring struct {
		MetricsEnabled *bool  `yaml:"metrics_enabled"`
		MetricsPort    *int   `yaml:"metrics_port"`
		MetricsPath    string `yaml:"metrics_path"`
		LogLevel       string `yaml:"log_level"`
	} `yaml:"monitoring"`
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return cacheerrors.Wrap(err, cacheerrors.ErrCodeConfigLoad, "failed to read config file")
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cacheerrors.Wrap(err, cacheerrors.ErrCodeConfigLoad, "failed to parse config file")
	}
	return c.applyFile(&fc)
}

// applyFile folds the parsed file onto the receiver.
func (c *Config) applyFile(fc *fileConfig) error {
	setDuration := func(dst *time.Duration, raw, field string) error {
		if raw == "" {
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cacheerrors.Wrapf(err, cacheerrors.ErrCodeConfigLoad, "invalid duration for %s", field)
		}
		*dst = d
		return nil
	}

	if fc.Strategy != "" {
		c.Strategy = types.Strategy(strings.ToLower(fc.Strategy))
	}
	if fc.MaxSize != nil {
		c.MaxSize = *fc.MaxSize
	}
	if err := setDuration(&c.TTL, fc.TTL, "ttl"); err != nil {
		return err
	}
	if err := setDuration(&c.LockTimeout, fc.LockTimeout, "lock_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.CleanupInterval, fc.CleanupInterval, "cleanup_interval"); err != nil {
		return err
	}
	if err := setDuration(&c.PatternStaleness, fc.PatternStaleness, "pattern_staleness"); err != nil {
		return err
	}
	if fc.CoalesceMisses != nil {
		c.CoalesceMisses = *fc.CoalesceMisses
	}

	if fc.Preload.Enabled != nil {
		c.Preload.Enabled = *fc.Preload.Enabled
	}
	if err := setDuration(&c.Preload.Interval, fc.Preload.Interval, "preload.interval"); err != nil {
		return err
	}
	if err := setDuration(&c.Preload.Window, fc.Preload.Window, "preload.window"); err != nil {
		return err
	}
	if fc.Preload.PopularKeys != nil {
		c.Preload.PopularKeys = fc.Preload.PopularKeys
	}
	if fc.Preload.MaxItems != nil {
		c.Preload.MaxItems = *fc.Preload.MaxItems
	}
	if fc.Preload.BatchSize != nil {
		c.Preload.BatchSize = *fc.Preload.BatchSize
	}

	if fc.Adaptive.HitRateThreshold != nil {
		c.Adaptive.HitRateThreshold = *fc.Adaptive.HitRateThreshold
	}
	if fc.Adaptive.AccessFrequencyThreshold != nil {
		c.Adaptive.AccessFrequencyThreshold = *fc.Adaptive.AccessFrequencyThreshold
	}

	if fc.Monitoring.MetricsEnabled != nil {
		c.Monitoring.MetricsEnabled = *fc.Monitoring.MetricsEnabled
	}
	if fc.Monitoring.MetricsPort != nil {
		c.Monitoring.MetricsPort = *fc.Monitoring.MetricsPort
	}
	if fc.Monitoring.MetricsPath != "" {
		c.Monitoring.MetricsPath = fc.Monitoring.MetricsPath
	}
	if fc.Monitoring.LogLevel != "" {
		c.Monitoring.LogLevel = strings.ToUpper(fc.Monitoring.LogLevel)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Config) LoadFromEnv() error {
	if val := os.Getenv("CACHEENGINE_STRATEGY"); val != "" {
		c.Strategy = types.Strategy(strings.ToLower(val))
	}
	if val := os.Getenv("CACHEENGINE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.MaxSize = size
		}
	}
	if val := os.Getenv("CACHEENGINE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.TTL = d
		}
	}
	if val := os.Getenv("CACHEENGINE_LOCK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.LockTimeout = d
		}
	}
	if val := os.Getenv("CACHEENGINE_CLEANUP_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.CleanupInterval = d
		}
	}
	if val := os.Getenv("CACHEENGINE_COALESCE_MISSES"); val != "" {
		c.CoalesceMisses = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CACHEENGINE_PRELOAD_ENABLED"); val != "" {
		c.Preload.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CACHEENGINE_PRELOAD_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Preload.Window = d
		}
	}
	if val := os.Getenv("CACHEENGINE_PRELOAD_MAX_ITEMS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Preload.MaxItems = n
		}
	}
	if val := os.Getenv("CACHEENGINE_HIT_RATE_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Adaptive.HitRateThreshold = f
		}
	}
	if val := os.Getenv("CACHEENGINE_METRICS_ENABLED"); val != "" {
		c.Monitoring.MetricsEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CACHEENGINE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Monitoring.MetricsPort = port
		}
	}
	if val := os.Getenv("CACHEENGINE_LOG_LEVEL"); val != "" {
		c.Monitoring.LogLevel = strings.ToUpper(val)
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Config) SaveToFile(filename string) error {
	var fc fileConfig
	fc.Strategy = string(c.Strategy)
	fc.MaxSize = &c.MaxSize
	fc.TTL = c.TTL.String()
	fc.LockTimeout = c.LockTimeout.String()
	fc.CleanupInterval = c.CleanupInterval.String()
	fc.PatternStaleness = c.PatternStaleness.String()
	fc.CoalesceMisses = &c.CoalesceMisses
	fc.Preload.Enabled = &c.Preload.Enabled
	fc.Preload.Interval = c.Preload.Interval.String()
	fc.Preload.Window = c.Preload.Window.String()
	fc.Preload.PopularKeys = c.Preload.PopularKeys
	fc.Preload.MaxItems = &c.Preload.MaxItems
	fc.Preload.BatchSize = &c.Preload.BatchSize
	fc.Adaptive.HitRateThreshold = &c.Adaptive.HitRateThreshold
	fc.Adaptive.AccessFrequencyThreshold = &c.Adaptive.AccessFrequencyThreshold
	fc.Monitoring.MetricsEnabled = &c.Monitoring.MetricsEnabled
	fc.Monitoring.MetricsPort = &c.Monitoring.MetricsPort
	fc.Monitoring.MetricsPath = c.Monitoring.MetricsPath
	fc.Monitoring.LogLevel = c.Monitoring.LogLevel

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return cacheerrors.Wrap(err, cacheerrors.ErrCodeConfigSave, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return cacheerrors.Wrap(err, cacheerrors.ErrCodeConfigSave, "failed to create config directory")
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return cacheerrors.Wrap(err, cacheerrors.ErrCodeConfigSave, "failed to write config file")
	}

	return nil
}

// Validate validates the configuration. Construction fails fast on an
// invalid configuration.
func (c *Config) Validate() error {
	if !c.Strategy.Valid() {
		return cacheerrors.Newf(cacheerrors.ErrCodeConfigValidation,
			"invalid strategy %q (must be one of: lru, lfu, fifo, adaptive)", c.Strategy)
	}
	if c.MaxSize <= 0 {
		return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "max_size must be greater than 0")
	}
	if c.TTL <= 0 {
		return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "ttl must be greater than 0")
	}
	if c.LockTimeout <= 0 {
		return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "lock_timeout must be greater than 0")
	}
	if c.CleanupInterval <= 0 {
		return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "cleanup_interval must be greater than 0")
	}
	if c.PatternStaleness <= 0 {
		return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "pattern_staleness must be greater than 0")
	}
	if c.Preload.Enabled {
		if c.Preload.Interval <= 0 {
			return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "preload.interval must be greater than 0")
		}
		if c.Preload.Window <= 0 {
			return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "preload.window must be greater than 0")
		}
		if c.Preload.MaxItems <= 0 {
			return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "preload.max_items must be greater than 0")
		}
		if c.Preload.BatchSize <= 0 {
			return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "preload.batch_size must be greater than 0")
		}
	}
	if c.Adaptive.HitRateThreshold < 0 || c.Adaptive.HitRateThreshold > 1 {
		return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "hit_rate_threshold must be between 0 and 1")
	}
	if c.Adaptive.AccessFrequencyThreshold < 0 {
		return cacheerrors.New(cacheerrors.ErrCodeConfigValidation, "access_frequency_threshold must not be negative")
	}

	return nil
}

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cacheerrors "github.com/adaptcache/adaptcache/pkg/errors"
	"github.com/adaptcache/adaptcache/pkg/types"
)

// Collector exports cache engine statistics as Prometheus metrics and
// optionally serves them over HTTP. A nil *Collector is a valid no-op
// receiver so the engine can run unmetered.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	accesses       *prometheus.CounterVec
	accessDuration *prometheus.HistogramVec
	evictions      *prometheus.CounterVec
	preloads       *prometheus.CounterVec
	lowHitRate     *prometheus.CounterVec
	entries        *prometheus.GaugeVec
	hitRate        *prometheus.GaugeVec

	server *http.Server
}

// Config represents metrics configuration.
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// NewCollector creates a metrics collector. A disabled config returns a
// collector whose methods are no-ops.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      8080,
			Path:      "/metrics",
			Namespace: "adaptcache",
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	registry := prometheus.NewRegistry()
	c := &Collector{
		config:   config,
		registry: registry,
	}

	constLabels := prometheus.Labels(config.Labels)

	c.accesses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "accesses_total",
		Help:        "Cache accesses by namespace and result.",
		ConstLabels: constLabels,
	}, []string{"namespace", "result"})

	c.accessDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Name:        "access_duration_seconds",
		Help:        "Time spent serving a cache access, including compute on miss.",
		Buckets:     prometheus.ExponentialBuckets(0.000001, 10, 8),
		ConstLabels: constLabels,
	}, []string{"namespace"})

	c.evictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "evictions_total",
		Help:        "Entries evicted under capacity pressure.",
		ConstLabels: constLabels,
	}, []string{"namespace"})

	c.preloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "preload_total",
		Help:        "Predictive preload attempts by result.",
		ConstLabels: constLabels,
	}, []string{"namespace", "result"})

	c.lowHitRate = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "low_hit_rate_signals_total",
		Help:        "Cleanup ticks that found a namespace below the hit rate threshold.",
		ConstLabels: constLabels,
	}, []string{"namespace"})

	c.entries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Name:        "entries",
		Help:        "Current entry count per namespace.",
		ConstLabels: constLabels,
	}, []string{"namespace"})

	c.hitRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Name:        "hit_rate",
		Help:        "Hit rate per namespace.",
		ConstLabels: constLabels,
	}, []string{"namespace"})

	for _, collector := range []prometheus.Collector{
		c.accesses, c.accessDuration, c.evictions, c.preloads,
		c.lowHitRate, c.entries, c.hitRate,
	} {
		if err := registry.Register(collector); err != nil {
			return nil, cacheerrors.Wrap(err, cacheerrors.ErrCodeInternalError, "failed to register metrics")
		}
	}

	return c, nil
}

func (c *Collector) enabled() bool {
	return c != nil && c.registry != nil
}

// ObserveAccess records one get operation.
func (c *Collector) ObserveAccess(namespace string, hit bool, d time.Duration) {
	if !c.enabled() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.accesses.WithLabelValues(namespace, result).Inc()
	c.accessDuration.WithLabelValues(namespace).Observe(d.Seconds())
}

// AddEvictions records evicted entries.
func (c *Collector) AddEvictions(namespace string, count int) {
	if !c.enabled() || count <= 0 {
		return
	}
	c.evictions.WithLabelValues(namespace).Add(float64(count))
}

// ObservePreload records one preload attempt.
func (c *Collector) ObservePreload(namespace string, success bool) {
	if !c.enabled() {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	c.preloads.WithLabelValues(namespace, result).Inc()
}

// LowHitRate records a low-hit-rate signal.
func (c *Collector) LowHitRate(namespace string) {
	if !c.enabled() {
		return
	}
	c.lowHitRate.WithLabelValues(namespace).Inc()
}

// UpdateStats refreshes the per-namespace gauges from a statistics
// snapshot.
func (c *Collector) UpdateStats(stats types.CacheStats) {
	if !c.enabled() {
		return
	}
	c.entries.WithLabelValues(stats.Namespace).Set(float64(stats.Size))
	c.hitRate.WithLabelValues(stats.Namespace).Set(stats.HitRate)
}

// Registry exposes the underlying registry for tests and embedding.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

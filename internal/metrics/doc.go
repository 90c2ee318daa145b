/*
Package metrics exports cache engine statistics as Prometheus metrics.

The collector tracks accesses (by namespace and hit/miss result),
access latency, evictions, preload outcomes, low-hit-rate signals, and
per-namespace entry-count and hit-rate gauges. It can serve the
standard /metrics endpoint over HTTP.

A nil collector is a valid no-op, so the engine runs unchanged with
monitoring disabled.
*/
package metrics

// Package metrics exposes proxy request counts, upstream latency and audit
// write failures in the Prometheus exposition format at /metrics.
package metrics

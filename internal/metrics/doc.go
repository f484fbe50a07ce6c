// Package metrics exposes cache and upstream-quota counters in the
// Prometheus text exposition format at /metrics. The Collector implements
// the store's Metrics hook; the handler encodes the current values with
// expfmt on every scrape.
package metrics

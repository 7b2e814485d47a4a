// Package metric exposes Prometheus metrics for the session container.
//
//   - prometheus.go: registry, HTTP metrics and the /metrics handler
//   - daemon.go: counters fed by the persistence and collection daemons
//   - collector.go: gauges read from the registry at scrape time
//
// All metrics use the "sfsb" namespace.
package metric

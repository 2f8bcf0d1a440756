// Package metrics exposes pipeline counters in the Prometheus format.
//
// A nil *Collector is valid and records nothing, so components can take a
// collector unconditionally and the watcher only creates one when a metrics
// address is configured.
package metrics

// Package prometheus provides Prometheus collectors for refreshguard metrics.
//
// [NewPrometheusExporter] accepts a [refreshguard.Manager] and exposes an [http.Handler]
// that renders all refreshguard counters and histograms in Prometheus text exposition format.
// Counter names are prefixed refreshguard_*_total; the single histogram is
// refreshguard_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate manager state.
package prometheus

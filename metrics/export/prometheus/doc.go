// Package prometheus renders hsAuth engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an engine and exposes an [http.Handler].
// Counters are named hsauth_*_total; bearer token resolution latency is the
// hsauth_authenticate_latency_seconds histogram.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus

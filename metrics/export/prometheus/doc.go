// Package prometheus renders goEnroll metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [goEnroll.Engine] and exposes an
// [http.Handler]. Counter names are prefixed goenroll_*_total; the single
// histogram is goenroll_check_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus

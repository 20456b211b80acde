// Package observability provides an OpenTelemetry metrics extension for
// tasker. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for task registration, invocation submission,
// success and failure.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability

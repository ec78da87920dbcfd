// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health probes for the PracticeHub authorization
// service.
//
// Security-relevant authorization events (super-admin bypasses, fail-closed
// scope resolutions, hierarchy integrity warnings) are emitted both as
// metrics and through Logger.Security so they can be alerted on.
package observability

// Package telemetry groups the agent's observability packages.
//
//   - logging: slog process logger with device-path redaction and a runtime
//     adjustable level
//   - metrics: Prometheus collector implementing the policy engine's Metrics
//   - tracing: OpenTelemetry tracer exporting over OTLP/gRPC
//   - health: liveness and readiness checks
//
// The server package wires all four from the telemetry section of the
// configuration. Device paths never appear in any of their outputs when
// redaction is on.
package telemetry

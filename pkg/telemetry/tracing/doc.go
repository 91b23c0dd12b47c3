// Package tracing sets up OpenTelemetry tracing for the agent.
//
// When enabled, spans are batched to an OTLP/gRPC collector. When disabled,
// a no-op tracer is returned so callers never branch on configuration:
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//	eng := engine.New(idx, scanner, resolver, st, engine.WithTracer(tracer))
//
// The engine opens spans named policy.apply, policy.remove, fsindex.expand and
// fsindex.collapse, tagged with the warden.* attributes declared in
// attributes.go. HTTPMiddleware continues traces started by API callers.
package tracing

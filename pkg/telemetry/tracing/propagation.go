package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Extract returns r with any W3C trace context from its headers attached
// to its context.
func Extract(r *http.Request) *http.Request {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return r.WithContext(ctx)
}

// HTTPMiddleware starts a server span per request, continuing the caller's
// trace when one is propagated. The trace id is echoed in X-Trace-ID.
func HTTPMiddleware(t *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = Extract(r)
			ctx, span := t.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			if id := TraceID(ctx); id != "" {
				w.Header().Set("X-Trace-ID", id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

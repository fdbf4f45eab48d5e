// Package telemetry models tracing as an explicit value passed through
// call chains rather than recovered implicitly from ambient context, since
// span creation and attachment are non-semantic to the coordinator's
// contracts.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// SpanContext is an explicit carrier for the current span, passed as a
// plain value rather than recovered from a context.Context. Operations
// that need to start a child span take a SpanContext and return a new one
// for the caller to thread onward.
type SpanContext struct {
	sc trace.SpanContext
}

// Empty is the zero SpanContext: no active span.
var Empty = SpanContext{}

// FromContext lifts the span recorded in ctx (if any) into an explicit
// SpanContext, for the one boundary where a context.Context is already in
// hand (e.g. an RPC handler).
func FromContext(ctx context.Context) SpanContext {
	return SpanContext{sc: trace.SpanContextFromContext(ctx)}
}

// Valid reports whether the carried span context identifies a real span.
func (s SpanContext) Valid() bool {
	return s.sc.IsValid()
}

// TraceID returns the hex trace id, or the empty string if no span is carried.
func (s SpanContext) TraceID() string {
	if !s.sc.IsValid() {
		return ""
	}
	return s.sc.TraceID().String()
}

// SpanID returns the hex span id, or the empty string if no span is carried.
func (s SpanContext) SpanID() string {
	if !s.sc.IsValid() {
		return ""
	}
	return s.sc.SpanID().String()
}

// Tracer names the spans a component emits. Components hold a Tracer and
// call Start explicitly at suspension points worth recording: an oracle
// fetch, a proving dispatch, an on-chain submission.
type Tracer struct {
	otel trace.Tracer
	name string
}

// NewTracer wraps an otel trace.Tracer under the given component name.
func NewTracer(name string, otelTracer trace.Tracer) Tracer {
	return Tracer{otel: otelTracer, name: name}
}

// Start begins a span named op, deriving it from parent if parent carries
// a valid span context. It returns the child SpanContext and a function to
// end the span; callers thread the child SpanContext into whatever they
// call next instead of relying on ambient propagation.
func (t Tracer) Start(parent SpanContext, op string) (SpanContext, func()) {
	ctx := trace.ContextWithSpanContext(context.Background(), parent.sc)
	ctx, span := t.otel.Start(ctx, t.name+"."+op)
	return SpanContext{sc: trace.SpanContextFromContext(ctx)}, func() { span.End() }
}

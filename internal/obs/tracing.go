package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer for the turn/round/tool-dispatch
// spans, in the style of an internal/observability.Tracer. This does
// not wire an OTLP exporter; NewTracer installs an in-process SDK
// TracerProvider with no exporter, so spans are created and can be
// read by any in-process span processor a caller registers, without
// requiring a collector endpoint.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer installs a no-exporter SDK TracerProvider under
// serviceName and returns a Tracer plus a shutdown function.
func NewTracer(serviceName string) (*Tracer, func(context.Context) error) {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return &Tracer{tracer: provider.Tracer(serviceName)}, provider.Shutdown
}

// StartTurn opens the root span for one turn.
func (t *Tracer) StartTurn(ctx context.Context, sessionKey, model string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("session_key", sessionKey),
			attribute.String("model", model),
		))
}

// StartRound opens a child span for one round within a turn.
func (t *Tracer) StartRound(ctx context.Context, round int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "round", trace.WithAttributes(attribute.Int("round", round)))
}

// StartToolDispatch opens a child span for one tool invocation.
func (t *Tracer) StartToolDispatch(ctx context.Context, toolName, callID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tool_dispatch", trace.WithAttributes(
		attribute.String("tool", toolName),
		attribute.String("call_id", callID),
	))
}

package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("combiner")

// SpanManager handles trace span lifecycle for the Driver loop. Use
// NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartTriggerSpan starts a span covering one trigger's full
	// dispatch through the RuleSet.
	StartTriggerSpan(ctx context.Context, triggerKind, source string) (context.Context, trace.Span)

	// StartRuleSpan starts a span for one rule's evaluation, as a
	// child of the trigger span.
	StartRuleSpan(ctx context.Context, ruleName string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager backed by the global OTel
// tracer provider.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartTriggerSpan(ctx context.Context, triggerKind, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "combiner.trigger",
		trace.WithAttributes(
			attribute.String("trigger.kind", triggerKind),
			attribute.String("source", source),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartRuleSpan(ctx context.Context, ruleName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "combiner.rule."+ruleName,
		trace.WithAttributes(attribute.String("rule.name", ruleName)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a Recorder that does nothing.
type NoopMetrics struct{}

var _ Recorder = NoopMetrics{}

func (NoopMetrics) RecordClassification(_ context.Context, _ string, _ int)             {}
func (NoopMetrics) RecordRuleEvaluation(_ context.Context, _, _ string, _ time.Duration) {}
func (NoopMetrics) RecordAction(_ context.Context, _, _ string)                          {}
func (NoopMetrics) RecordStorageConflict(_ context.Context, _ string)                    {}
func (NoopMetrics) RecordExpiryQueueDepth(_ context.Context, _ int64)                    {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

func (NoopSpanManager) StartTriggerSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) StartRuleSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}

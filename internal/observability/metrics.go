package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records correlation engine metrics. Use NewRecorder() for
// OTel metrics or NoopMetrics{} when disabled.
type Recorder interface {
	// RecordClassification records one raw event being classified
	// against zero or more source definitions.
	RecordClassification(ctx context.Context, source string, matchedTypes int)

	// RecordRuleEvaluation records one rule evaluation outcome
	// ("satisfied", "not_satisfied", "requirement_not_met") and its
	// duration.
	RecordRuleEvaluation(ctx context.Context, ruleName, outcome string, duration time.Duration)

	// RecordAction records an action handed to a submitter target.
	RecordAction(ctx context.Context, ruleName, target string)

	// RecordStorageConflict records a lost optimistic EventStore race.
	RecordStorageConflict(ctx context.Context, correlationKey string)

	// RecordExpiryQueueDepth records the current number of pending
	// expiries, sampled periodically by the Driver loop.
	RecordExpiryQueueDepth(ctx context.Context, depth int64)
}

type otelMetrics struct {
	classifications metric.Int64Counter
	ruleEvaluations metric.Int64Counter
	ruleLatency     metric.Float64Histogram
	actions         metric.Int64Counter
	storageConflict metric.Int64Counter
	expiryDepth     metric.Int64Gauge
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("combiner")

	classifications, err := meter.Int64Counter("combiner.classifications",
		metric.WithDescription("Number of raw events classified"))
	if err != nil {
		return nil, err
	}

	ruleEvaluations, err := meter.Int64Counter("combiner.rule_evaluations",
		metric.WithDescription("Number of rule evaluations by outcome"))
	if err != nil {
		return nil, err
	}

	ruleLatency, err := meter.Float64Histogram("combiner.rule_evaluation_latency_ms",
		metric.WithDescription("Rule evaluation latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	actions, err := meter.Int64Counter("combiner.actions_emitted",
		metric.WithDescription("Number of actions emitted to a submitter target"))
	if err != nil {
		return nil, err
	}

	storageConflict, err := meter.Int64Counter("combiner.storage_conflicts",
		metric.WithDescription("Number of lost optimistic EventStore transactions"))
	if err != nil {
		return nil, err
	}

	expiryDepth, err := meter.Int64Gauge("combiner.expiry_queue_depth",
		metric.WithDescription("Pending entries in the expiry queue"))
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		classifications: classifications,
		ruleEvaluations: ruleEvaluations,
		ruleLatency:     ruleLatency,
		actions:         actions,
		storageConflict: storageConflict,
		expiryDepth:     expiryDepth,
	}, nil
}

// NewRecorder returns a Recorder backed by the global OTel meter
// provider, falling back to a no-op recorder if initialization fails.
func NewRecorder() Recorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder", slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordClassification(ctx context.Context, source string, matchedTypes int) {
	m.classifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.Int("matched_types", matchedTypes),
		))
}

func (m *otelMetrics) RecordRuleEvaluation(ctx context.Context, ruleName, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("rule_name", ruleName),
		attribute.String("outcome", outcome),
	)
	m.ruleEvaluations.Add(ctx, 1, attrs)
	m.ruleLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordAction(ctx context.Context, ruleName, target string) {
	m.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule_name", ruleName),
		attribute.String("target", target),
	))
}

func (m *otelMetrics) RecordStorageConflict(ctx context.Context, correlationKey string) {
	m.storageConflict.Add(ctx, 1, metric.WithAttributes(
		attribute.String("correlation_key", correlationKey),
	))
}

func (m *otelMetrics) RecordExpiryQueueDepth(ctx context.Context, depth int64) {
	m.expiryDepth.Record(ctx, depth)
}

// Package observability provides structured logging, metrics, and
// tracing for the correlation engine: structured logging via slog,
// metrics and tracing via OpenTelemetry, all opt-in with no-op
// implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// Enrich adds engine context to a logger: the event source, its
// correlation key (once classified), and the rule under evaluation,
// where applicable.
func Enrich(logger *slog.Logger, source, correlationKey, ruleName string) *slog.Logger {
	if logger == nil {
		return nil
	}
	attrs := make([]any, 0, 6)
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	if correlationKey != "" {
		attrs = append(attrs, slog.String("correlation_key", correlationKey))
	}
	if ruleName != "" {
		attrs = append(attrs, slog.String("rule_name", ruleName))
	}
	return logger.With(attrs...)
}

// LogTriggerReceived logs a trigger entering the Processor.
func LogTriggerReceived(logger *slog.Logger, triggerKind, source string) {
	if logger == nil {
		return
	}
	logger.Debug("trigger received",
		slog.String("trigger_kind", triggerKind),
		slog.String("source", source),
	)
}

// LogRuleSatisfied logs a rule whose condition was satisfied.
func LogRuleSatisfied(logger *slog.Logger, ruleName, correlationKey string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("rule condition satisfied",
		slog.String("rule_name", ruleName),
		slog.String("correlation_key", correlationKey),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogActionEmitted logs a rendered action handed to a submitter.
func LogActionEmitted(logger *slog.Logger, ruleName, target string) {
	if logger == nil {
		return
	}
	logger.Info("action emitted",
		slog.String("rule_name", ruleName),
		slog.String("target", target),
	)
}

// LogPerEventError logs a recoverable error and the event/evaluation
// it caused the engine to skip, per spec.md §7's per-event policy.
func LogPerEventError(logger *slog.Logger, kind, context string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("recoverable error, continuing",
		slog.String("kind", kind),
		slog.String("context", context),
		slog.String("error", err.Error()),
	)
}

// LogFatal logs an unrecoverable error immediately before shutdown.
func LogFatal(logger *slog.Logger, kind string, err error) {
	if logger == nil {
		return
	}
	logger.Error("fatal error, shutting down",
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures elapsed time; the returned func reports
// milliseconds since TimedOperation was called.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}

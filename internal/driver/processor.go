package driver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/combiner/internal/cerrors"
	"github.com/randalmurphal/combiner/internal/classify"
	"github.com/randalmurphal/combiner/internal/event"
	"github.com/randalmurphal/combiner/internal/expiry"
	"github.com/randalmurphal/combiner/internal/observability"
	"github.com/randalmurphal/combiner/internal/predicate"
	"github.com/randalmurphal/combiner/internal/store"
)

// Processor is the top-level orchestrator of spec.md §4.9: it owns the
// EventStore, classifier, keyer, rule set, and predicate engine, and
// turns one raw payload or one due expiry into zero or more Actions.
type Processor struct {
	classifier *classify.Classifier
	keyer      *classify.Keyer
	store      store.Store
	rules      []Rule
	engine     predicate.Engine

	logger  *slog.Logger
	metrics observability.Recorder
	spans   observability.SpanManager
}

// NewProcessor builds a Processor from its wired collaborators.
func NewProcessor(classifier *classify.Classifier, keyer *classify.Keyer, st store.Store, rules []Rule, engine predicate.Engine, opts ...ProcessorOption) *Processor {
	p := &Processor{
		classifier: classifier,
		keyer:      keyer,
		store:      st,
		rules:      rules,
		engine:     engine,
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessorOption configures optional Processor collaborators.
type ProcessorOption func(*Processor)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m observability.Recorder) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithSpans attaches a trace span manager.
func WithSpans(s observability.SpanManager) ProcessorOption {
	return func(p *Processor) { p.spans = s }
}

// OnRaw implements spec.md §4.9's on_raw: classify a raw payload from
// source, persist/correlate each resulting event, and evaluate every
// rule against it.
func (p *Processor) OnRaw(ctx context.Context, source string, raw map[string]any, now time.Time) ([]Action, error) {
	types := p.classifier.Classify(source, raw)
	p.metrics.RecordClassification(ctx, source, len(types))

	var actions []Action
	for _, eventType := range types {
		key, correlated, err := p.keyer.Key(eventType, raw)
		if err != nil {
			observability.LogPerEventError(p.logger, "EventMatch", "classify "+eventType, err)
			continue
		}

		var got []Action
		if correlated {
			got, err = p.processCorrelated(ctx, key, eventType, raw, now)
		} else {
			got, err = p.processNonCorrelated(ctx, eventType, raw, now)
		}
		if err != nil {
			observability.LogPerEventError(p.logger, "RuleEvaluation", "event type "+eventType, err)
			continue
		}
		actions = append(actions, got...)
	}
	return actions, nil
}

func (p *Processor) processCorrelated(ctx context.Context, key, eventType string, raw map[string]any, now time.Time) ([]Action, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	rec := store.Record{Received: now, CorrelationKey: key, EventType: eventType, Data: data}

	return cerrors.RetryOnceFunc(func() ([]Action, error) {
		txn, err := p.store.Begin(key)
		if err != nil {
			return nil, cerrors.New(cerrors.Io, "store begin", err)
		}

		batch, err := txn.Append(rec)
		if err != nil {
			txn.Rollback()
			return nil, cerrors.New(cerrors.Io, "store append", err)
		}

		events, err := decodeBatch(batch)
		if err != nil {
			txn.Rollback()
			return nil, err
		}

		triggerEvent := events[len(events)-1]
		evalCtx := event.NewContext(events[:len(events)-1])
		trigger := ReceivedEventTrigger(triggerEvent)

		actions, err := p.evaluateAll(trigger, evalCtx, now)
		if err != nil {
			txn.Rollback()
			return nil, err
		}

		if err := txn.Commit(); err != nil {
			if err == store.ErrConflict {
				p.metrics.RecordStorageConflict(ctx, key)
				return nil, cerrors.New(cerrors.StorageConflict, "correlation key "+key, err)
			}
			return nil, cerrors.New(cerrors.Io, "store commit", err)
		}
		return actions, nil
	})
}

func (p *Processor) processNonCorrelated(ctx context.Context, eventType string, raw map[string]any, now time.Time) ([]Action, error) {
	ev := event.NewNonCorrelated(now, uuid.NewString(), eventType, raw)
	trigger := ReceivedEventTrigger(ev)
	return p.evaluateAll(trigger, event.NewContext(nil), now)
}

// OnExpiry implements spec.md §4.9's on_expiry: read the full context
// for a due expiry's correlation key and evaluate every rule against a
// TimerExpired trigger, without mutating the store.
func (p *Processor) OnExpiry(ctx context.Context, entry expiry.Entry, now time.Time) ([]Action, error) {
	txn, err := p.store.Begin(entry.CorrelationKey)
	if err != nil {
		return nil, cerrors.New(cerrors.Io, "store begin", err)
	}
	defer txn.Rollback()

	batch, err := txn.Read()
	if err != nil {
		return nil, cerrors.New(cerrors.Io, "store read", err)
	}
	events, err := decodeBatch(batch)
	if err != nil {
		return nil, err
	}

	evalCtx := event.NewContext(events)
	trigger := TimerExpiredTrigger(entry, now)
	return p.evaluateAll(trigger, evalCtx, now)
}

func (p *Processor) evaluateAll(trigger Trigger, evalCtx event.Context, now time.Time) ([]Action, error) {
	observability.LogTriggerReceived(p.logger, triggerKindLabel(trigger.Kind), "")

	var actions []Action
	for _, rule := range p.rules {
		stop := observability.TimedOperation()
		result, err := Evaluate(rule, trigger, evalCtx, p.engine, now)
		duration := time.Duration(stop() * float64(time.Millisecond))

		if err != nil {
			var cerr *cerrors.Error
			kind := "RuleEvaluation"
			if asCerror(err, &cerr) {
				kind = cerr.Kind.String()
			}
			observability.LogPerEventError(p.logger, kind, "rule "+rule.Name, err)
			p.metrics.RecordRuleEvaluation(context.Background(), rule.Name, "error", duration)
			continue
		}

		p.metrics.RecordRuleEvaluation(context.Background(), rule.Name, outcomeLabel(result.Outcome), duration)
		if result.Outcome == ConditionSatisfied {
			observability.LogRuleSatisfied(p.logger, rule.Name, correlationKeyOrEmpty(trigger, evalCtx), duration.Seconds()*1000)
		}
		if result.HasAction {
			if result.Action.Kind == Emit {
				observability.LogActionEmitted(p.logger, rule.Name, result.Action.Target)
				p.metrics.RecordAction(context.Background(), rule.Name, result.Action.Target)
			}
			actions = append(actions, result.Action)
		}
	}
	return actions, nil
}

func triggerKindLabel(k TriggerKind) string {
	if k == ReceivedEvent {
		return "received_event"
	}
	return "timer_expired"
}

func outcomeLabel(o Outcome) string {
	switch o {
	case ConditionSatisfied:
		return "satisfied"
	case ConditionNotSatisfied:
		return "not_satisfied"
	default:
		return "requirement_not_met"
	}
}

func correlationKeyOrEmpty(trigger Trigger, ctx event.Context) string {
	key, ok := correlationKey(trigger, ctx)
	if !ok {
		return ""
	}
	return key
}

func asCerror(err error, target **cerrors.Error) bool {
	cerr, ok := err.(*cerrors.Error)
	if !ok {
		return false
	}
	*target = cerr
	return true
}

// decodeBatch converts the store's wire Records into classified
// Events. Every record was written as a Correlated event (see
// processCorrelated); NonCorrelated events never reach the store.
func decodeBatch(batch []store.Record) ([]event.Event, error) {
	events := make([]event.Event, 0, len(batch))
	for _, rec := range batch {
		var data map[string]any
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return nil, cerrors.New(cerrors.Io, "decode stored event", err)
		}
		events = append(events, event.NewCorrelated(rec.Received, rec.CorrelationKey, rec.EventType, data))
	}
	return events, nil
}

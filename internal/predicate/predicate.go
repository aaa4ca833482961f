// Package predicate defines the PredicateEngine contract of spec.md
// §4.4: compile/install a named predicate source once, then evaluate
// it repeatedly against (trigger, context) pairs, yielding either a
// JSON extraction payload or nil ("not satisfied").
//
// The engine is an external subsystem — the embedded JavaScript
// runtime — reached only through this interface, so the rest of the
// correlation engine compiles without pulling in a script runtime
// (spec.md §9).
package predicate

import "errors"

// Handle identifies a compiled predicate. Handles are opaque and
// stable for the process lifetime.
type Handle int

// Engine compiles predicate source and evaluates it against triggers.
type Engine interface {
	// Store compiles a single-argument-pair function from source text
	// and returns a stable handle for later Evaluate calls.
	Store(source string) (Handle, error)

	// Evaluate invokes the compiled function with the given trigger
	// and context (already JSON-shaped — map[string]any / []any /
	// scalars / nil). A nil result means "not satisfied"; any other
	// value is the predicate's extraction payload.
	Evaluate(h Handle, triggerJSON, contextJSON any) (any, error)
}

// EvaluationError wraps a compile or runtime failure from an Engine,
// corresponding to spec.md §7's RuleEvaluation error kind.
type EvaluationError struct {
	Handle Handle
	Err    error
}

func (e *EvaluationError) Error() string {
	return "predicate: evaluation failed: " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ErrNonJSONReturn is wrapped into an EvaluationError when a predicate
// returns a value that can't be represented as JSON (e.g. a function
// or a cyclic object).
var ErrNonJSONReturn = errors.New("predicate returned a non-JSON-representable value")

// Default is the predicate used by a rule that declares none
// (spec.md §4.4): it assembles a {trigger, events, meta} extraction
// from the same (triggerJSON, contextJSON) pair a custom predicate
// receives, and returns nil only when the candidate list behind them
// — trigger plus context — is empty. A rule with no requirement and
// no predicate must therefore yield a non-nil extraction whenever it
// is evaluated at all, since Evaluate never calls a predicate over an
// empty candidate list.
//
// Grounded on laika_combiner's DEFAULT_PREDICATE
// (original_source/laika_combiner/src/config/mod.rs), with presence
// judged against the trigger as well as context.events: a lone
// NonCorrelated event is itself the trigger and leaves no trace in
// context.events, so checking context.events alone would never fire
// for it.
func Default(triggerJSON, contextJSON any) (any, error) {
	trigger, _ := triggerJSON.(map[string]any)
	ctx, _ := contextJSON.(map[string]any)

	events := map[string]any{}
	meta := map[string]any{}
	hasEvents := false

	if ctxEvents, ok := ctx["events"].(map[string]any); ok {
		for eventType, v := range ctxEvents {
			list, ok := v.([]any)
			if !ok || len(list) == 0 {
				continue
			}
			events[eventType] = list
			meta[eventType+"_count"] = len(list)
			hasEvents = true
		}
	}
	if trigger["type"] == "received_event" {
		hasEvents = true
	}
	if !hasEvents {
		return nil, nil
	}

	return map[string]any{
		"trigger": triggerSummary(trigger),
		"events":  events,
		"meta":    meta,
	}, nil
}

// triggerSummary builds the {type, timestamp, event?} shape Default
// exposes as "trigger", so a default-predicate extraction can address
// trigger.event.* the same way a custom predicate's trigger argument
// can.
func triggerSummary(trigger map[string]any) map[string]any {
	summary := map[string]any{
		"type":      trigger["type"],
		"timestamp": trigger["timestamp"],
	}
	if trigger["type"] == "received_event" {
		if ev, ok := trigger["event"]; ok {
			summary["event"] = ev
		}
	}
	return summary
}

package driver

import (
	"errors"
	"time"

	"github.com/randalmurphal/combiner/internal/cerrors"
	"github.com/randalmurphal/combiner/internal/event"
	"github.com/randalmurphal/combiner/internal/predicate"
)

var errInvalidEventGroup = errors.New("driver: a NonCorrelated event cannot coexist with another event in a rule evaluation")

// Outcome classifies the result of evaluating one rule.
type Outcome int

const (
	// RequirementNotMet means the rule's precondition never became
	// true for this candidate list; nothing happens.
	RequirementNotMet Outcome = iota
	// ConditionSatisfied means the predicate returned a non-nil
	// extraction; an Emit action is produced.
	ConditionSatisfied
	// ConditionNotSatisfied means the requirement was met but the
	// predicate returned nil; a ScheduleWakeup action may be produced.
	ConditionNotSatisfied
)

// Result is the outcome of evaluating one rule against one
// (trigger, context) pair.
type Result struct {
	Outcome Outcome
	MetAt   time.Time
	Action  Action // valid iff Outcome != RequirementNotMet and an action was produced
	HasAction bool
}

// Evaluate runs the four-step algorithm of spec.md §4.5 for a single
// rule against a single (trigger, context) pair.
func Evaluate(rule Rule, trigger Trigger, ctx event.Context, engine predicate.Engine, now time.Time) (Result, error) {
	candidates, err := candidateList(rule, trigger, ctx)
	if err != nil {
		return Result{}, err
	}

	metAt, ok := requirementMetAt(rule.Requirement, candidates)
	if !ok {
		return Result{Outcome: RequirementNotMet}, nil
	}

	tJSON := triggerJSON(trigger)
	cJSON := contextJSON(ctx)

	var extraction any
	if rule.HasPredicate {
		extraction, err = engine.Evaluate(rule.PredicateHandle, tJSON, cJSON)
	} else {
		extraction, err = predicate.Default(tJSON, cJSON)
	}
	if err != nil {
		return Result{}, cerrors.New(cerrors.RuleEvaluation, "rule "+rule.Name, err)
	}

	if extraction != nil {
		payload, err := rule.Action.Template.Render(extraction)
		if err != nil {
			return Result{}, cerrors.New(cerrors.Render, "rule "+rule.Name+" action", err)
		}
		return Result{
			Outcome: ConditionSatisfied,
			MetAt:   metAt,
			Action: Action{
				Kind:    Emit,
				Target:  rule.Action.Target,
				Payload: payload,
			},
			HasAction: true,
		}, nil
	}

	result := Result{Outcome: ConditionNotSatisfied, MetAt: metAt}
	if rule.Timing == nil {
		return result, nil
	}
	key, known := correlationKey(trigger, ctx)
	if !known {
		return result, nil
	}
	next, ok := rule.Timing.NextCheck(metAt, now)
	if !ok {
		return result, nil
	}
	result.Action = Action{
		Kind:           ScheduleWakeup,
		ExpiresAt:      next,
		CorrelationKey: key,
		RuleName:       rule.Name,
	}
	result.HasAction = true
	return result, nil
}

// candidateList builds Step A's candidate list and enforces the
// NonCorrelated mixing invariant.
func candidateList(rule Rule, trigger Trigger, ctx event.Context) ([]event.Event, error) {
	candidates := append([]event.Event(nil), ctx.Sequence...)
	if trigger.Kind == ReceivedEvent {
		candidates = append(candidates, trigger.Event)
	}

	nonCorrelated := 0
	for _, c := range candidates {
		if c.Kind == event.NonCorrelated {
			nonCorrelated++
		}
	}
	if nonCorrelated > 0 && len(candidates) > 1 {
		return nil, cerrors.New(cerrors.InvalidEventGroup, "rule "+rule.Name, errInvalidEventGroup)
	}
	if trigger.Kind == ReceivedEvent && trigger.Event.Kind == event.NonCorrelated {
		if ctx.Len() > 0 || len(rule.Requirement.Targets) > 1 {
			return nil, cerrors.New(cerrors.InvalidEventGroup, "rule "+rule.Name, errInvalidEventGroup)
		}
	}

	return candidates, nil
}

// requirementMetAt implements Step B: the instant, if any, a rule's
// requirement became satisfied by the candidate list.
func requirementMetAt(req Requirement, candidates []event.Event) (time.Time, bool) {
	if len(candidates) == 0 {
		return time.Time{}, false
	}

	if !req.set {
		return candidates[len(candidates)-1].Received, true
	}

	switch req.Kind {
	case RequireAtLeast:
		seen := make(map[string]struct{}, len(req.Targets))
		remaining := make(map[string]struct{}, len(req.Targets))
		for _, t := range req.Targets {
			remaining[t] = struct{}{}
		}
		for _, c := range candidates {
			if _, wanted := remainingContains(req.Targets, c.EventType); wanted {
				seen[c.EventType] = struct{}{}
				delete(remaining, c.EventType)
			}
			if len(remaining) == 0 && len(seen) > 0 {
				return c.Received, true
			}
		}
		return time.Time{}, false

	case RequireExactly:
		if len(candidates) != len(req.Targets) {
			return time.Time{}, false
		}
		want := make(map[string]int, len(req.Targets))
		for _, t := range req.Targets {
			want[t]++
		}
		got := make(map[string]int, len(candidates))
		for _, c := range candidates {
			got[c.EventType]++
		}
		if len(want) != len(got) {
			return time.Time{}, false
		}
		for t, n := range want {
			if got[t] != n {
				return time.Time{}, false
			}
		}
		return candidates[len(candidates)-1].Received, true

	default:
		return time.Time{}, false
	}
}

func remainingContains(targets []string, eventType string) (string, bool) {
	for _, t := range targets {
		if t == eventType {
			return t, true
		}
	}
	return "", false
}

// correlationKey reports the correlation key a rule evaluation belongs
// to, if determinable: the trigger's own key, or the context's key
// (all of a context's events share one key, by construction).
func correlationKey(trigger Trigger, ctx event.Context) (string, bool) {
	if trigger.Kind == TimerExpired {
		return trigger.Expiry.CorrelationKey, true
	}
	if trigger.Event.Kind == event.Correlated {
		return trigger.Event.CorrelationKey, true
	}
	if ctx.Len() > 0 {
		return ctx.Sequence[0].CorrelationKey, true
	}
	return "", false
}

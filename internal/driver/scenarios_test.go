package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/combiner/internal/cerrors"
	"github.com/randalmurphal/combiner/internal/classify"
	"github.com/randalmurphal/combiner/internal/driver"
	"github.com/randalmurphal/combiner/internal/event"
	"github.com/randalmurphal/combiner/internal/expiry"
	"github.com/randalmurphal/combiner/internal/predicate"
	"github.com/randalmurphal/combiner/internal/store"
)

// Scenario 1: a lone NonCorrelated event satisfies a rule requiring
// [A] on its own, with an empty context, and the default predicate's
// extraction makes the triggering event's own fields addressable as
// trigger.event.*.
func TestScenario_SingleNonCorrelatedMatch(t *testing.T) {
	classifier := classify.New([]classify.TypeDefinition{
		{SourceName: "s", Pattern: classify.MatchRules(classify.FieldMatch{Path: "type", Matcher: classify.Exact("X")}), EventType: "A"},
	})
	keyer := classify.NewKeyer(nil)
	rule := driver.Rule{
		Name:        "single-a",
		Requirement: driver.AtLeast([]string{"A"}),
		Action:      driver.ActionSpec{Target: "out", Template: mustTemplate(t, "${{ trigger.event.id }}")},
	}
	p := driver.NewProcessor(classifier, keyer, store.NewMemoryStore(), []driver.Rule{rule}, predicate.NewStubEngine())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	actions, err := p.OnRaw(context.Background(), "s", map[string]any{"type": "X", "id": "7"}, now)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "7", actions[0].Payload)
}

// Scenario 2: an Exactly[A,B,C] requirement rejects a candidate list
// whose types match the cardinality but not the set (two Bs, no C) —
// no emission, ever, for that candidate list.
func TestScenario_ExactRequirement_CardinalityWithoutSetMatch_NeverEmits(t *testing.T) {
	classifier := classify.New([]classify.TypeDefinition{
		{SourceName: "stream", Pattern: classify.MatchRules(classify.FieldMatch{Path: "kind", Matcher: classify.Exact("A")}), EventType: "A"},
		{SourceName: "stream", Pattern: classify.MatchRules(classify.FieldMatch{Path: "kind", Matcher: classify.Exact("B")}), EventType: "B"},
		{SourceName: "stream", Pattern: classify.MatchRules(classify.FieldMatch{Path: "kind", Matcher: classify.Exact("C")}), EventType: "C"},
	})
	keyer := classify.NewKeyer(map[string]string{"A": "key", "B": "key", "C": "key"})
	rule := driver.Rule{
		Name:        "needs-abc",
		Requirement: driver.Exactly([]string{"A", "B", "C"}),
		Action:      driver.ActionSpec{Target: "out", Template: mustTemplate(t, "complete")},
	}
	p := driver.NewProcessor(classifier, keyer, store.NewMemoryStore(), []driver.Rule{rule}, predicate.NewStubEngine())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	actions, err := p.OnRaw(ctx, "stream", map[string]any{"kind": "A", "key": "k1"}, now)
	require.NoError(t, err)
	assert.Empty(t, actions)

	actions, err = p.OnRaw(ctx, "stream", map[string]any{"kind": "B", "key": "k1"}, now.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, actions)

	actions, err = p.OnRaw(ctx, "stream", map[string]any{"kind": "B", "key": "k1"}, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Empty(t, actions, "A,B,B has the right cardinality but the wrong set; it must never fire")
}

// Scenario 3: an AtLeast[A,B] requirement fires the instant it first
// becomes complete, and fires again — pinned to the same met_at — on
// every later candidate list that still satisfies it.
func TestScenario_AtLeastRequirement_FiresOnCompletionAndEveryEvaluationAfter(t *testing.T) {
	classifier := classify.New([]classify.TypeDefinition{
		{SourceName: "stream", Pattern: classify.MatchRules(classify.FieldMatch{Path: "kind", Matcher: classify.Exact("A")}), EventType: "A"},
		{SourceName: "stream", Pattern: classify.MatchRules(classify.FieldMatch{Path: "kind", Matcher: classify.Exact("B")}), EventType: "B"},
	})
	keyer := classify.NewKeyer(map[string]string{"A": "key", "B": "key"})
	rule := driver.Rule{
		Name:        "needs-ab",
		Requirement: driver.AtLeast([]string{"A", "B"}),
		Action:      driver.ActionSpec{Target: "out", Template: mustTemplate(t, "fired")},
	}
	p := driver.NewProcessor(classifier, keyer, store.NewMemoryStore(), []driver.Rule{rule}, predicate.NewStubEngine())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	actions, err := p.OnRaw(ctx, "stream", map[string]any{"kind": "A", "key": "k1"}, now)
	require.NoError(t, err)
	assert.Empty(t, actions)

	actions, err = p.OnRaw(ctx, "stream", map[string]any{"kind": "B", "key": "k1"}, now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, actions, 1, "requirement completes on the first B")

	actions, err = p.OnRaw(ctx, "stream", map[string]any{"kind": "B", "key": "k1"}, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, actions, 1, "a second B still satisfies AtLeast[A,B]; the rule fires again")
}

// Scenario 4: a predicate that returns nil schedules a recheck; once
// the predicate starts returning a non-nil extraction, the scheduled
// recheck emits.
func TestScenario_RecheckScheduling_ThenEmitsOnceSatisfied(t *testing.T) {
	classifier := classify.New([]classify.TypeDefinition{
		{SourceName: "stream", Pattern: classify.All(), EventType: "signal"},
	})
	keyer := classify.NewKeyer(map[string]string{"signal": "key"})

	engine := predicate.NewStubEngine()
	threshold := 2
	seen := 0
	handle, err := engine.Store("count-to-threshold")
	require.NoError(t, err)
	engine.Register("count-to-threshold", func(triggerJSON, contextJSON any) (any, error) {
		seen++
		if seen < threshold {
			return nil, nil
		}
		return map[string]any{"count": seen}, nil
	})

	timing := driver.NewTimingConfig(0, 10*time.Second, time.Minute, true, true)
	rule := driver.Rule{
		Name:            "count-signals",
		PredicateHandle: handle,
		HasPredicate:    true,
		Requirement:     driver.NoRequirement(),
		Timing:          &timing,
		Action:          driver.ActionSpec{Target: "out", Template: mustTemplate(t, "threshold reached")},
	}
	p := driver.NewProcessor(classifier, keyer, store.NewMemoryStore(), []driver.Rule{rule}, engine)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	actions, err := p.OnRaw(context.Background(), "stream", map[string]any{"key": "k1"}, now)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, driver.ScheduleWakeup, actions[0].Kind)
	entry := expiry.Entry{ExpiresAt: actions[0].ExpiresAt, CorrelationKey: actions[0].CorrelationKey, RuleName: actions[0].RuleName}

	actions, err = p.OnExpiry(context.Background(), entry, entry.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, driver.Emit, actions[0].Kind)
	assert.Equal(t, "threshold reached", actions[0].Payload)
}

// Scenario 5: a NonCorrelated trigger is never allowed to join a
// non-empty context — Evaluate rejects it as an InvalidEventGroup
// rather than silently dropping the context's events.
func TestScenario_NonCorrelatedWithCorrelatedContext_Rejected(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	correlated := event.NewCorrelated(now, "k1", "order_placed", nil)
	nonCorrelated := event.NewNonCorrelated(now.Add(time.Second), "evt-1", "heartbeat", nil)

	rule := driver.Rule{
		Name:        "mixed-group",
		Requirement: driver.NoRequirement(),
		Action:      driver.ActionSpec{Target: "out", Template: mustTemplate(t, "x")},
	}

	_, err := driver.Evaluate(rule, driver.ReceivedEventTrigger(nonCorrelated), event.NewContext([]event.Event{correlated}), predicate.NewStubEngine(), now)
	require.Error(t, err)
	var cerr *cerrors.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, cerrors.InvalidEventGroup, cerr.Kind)
}

// Scenario 6: a payload template with a nested-path reference beside
// literal text renders both correctly.
func TestScenario_TemplateWithNestedPathAndLiteral(t *testing.T) {
	tmpl := mustTemplate(t, "order ${{ order.id }} shipped to ${{ order.dest.city }}")
	extraction := map[string]any{
		"order": map[string]any{
			"id": "o-42",
			"dest": map[string]any{
				"city": "Springfield",
			},
		},
	}
	rendered, err := tmpl.Render(extraction)
	require.NoError(t, err)
	assert.Equal(t, "order o-42 shipped to Springfield", rendered)
}

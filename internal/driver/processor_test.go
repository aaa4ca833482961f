package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/combiner/internal/classify"
	"github.com/randalmurphal/combiner/internal/driver"
	"github.com/randalmurphal/combiner/internal/expiry"
	"github.com/randalmurphal/combiner/internal/predicate"
	"github.com/randalmurphal/combiner/internal/store"
)

func newTestClassifierAndKeyer() (*classify.Classifier, *classify.Keyer) {
	defs := []classify.TypeDefinition{
		{
			SourceName: "orders",
			Pattern:    classify.MatchRules(classify.FieldMatch{Path: "kind", Matcher: classify.Exact("placed")}),
			EventType:  "order_placed",
		},
		{
			SourceName: "orders",
			Pattern:    classify.MatchRules(classify.FieldMatch{Path: "kind", Matcher: classify.Exact("shipped")}),
			EventType:  "order_shipped",
		},
		{SourceName: "heartbeats", Pattern: classify.All(), EventType: "heartbeat"},
	}
	classifier := classify.New(defs)
	keyer := classify.NewKeyer(map[string]string{
		"order_placed":  "order_id",
		"order_shipped": "order_id",
	})
	return classifier, keyer
}

func TestProcessor_OnRaw_NonCorrelated_EmitsImmediately(t *testing.T) {
	classifier, keyer := newTestClassifierAndKeyer()
	classifier = classify.New([]classify.TypeDefinition{
		{SourceName: "heartbeats", Pattern: classify.All(), EventType: "heartbeat"},
	})
	st := store.NewMemoryStore()
	rule := driver.Rule{
		Name:        "heartbeat-seen",
		Requirement: driver.NoRequirement(),
		Action:      driver.ActionSpec{Target: "out", Template: mustTemplate(t, "ok")},
	}
	p := driver.NewProcessor(classifier, keyer, st, []driver.Rule{rule}, predicate.NewStubEngine())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	actions, err := p.OnRaw(context.Background(), "heartbeats", map[string]any{"status": "up"}, now)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, driver.Emit, actions[0].Kind)
	assert.Equal(t, "ok", actions[0].Payload)
}

func TestProcessor_OnRaw_Correlated_AccumulatesAcrossCalls(t *testing.T) {
	classifier, keyer := newTestClassifierAndKeyer()
	st := store.NewMemoryStore()
	rule := driver.Rule{
		Name:        "placed-then-shipped",
		Requirement: driver.Exactly([]string{"order_placed", "order_shipped"}),
		Action:      driver.ActionSpec{Target: "out", Template: mustTemplate(t, "complete")},
	}
	p := driver.NewProcessor(classifier, keyer, st, []driver.Rule{rule}, predicate.NewStubEngine())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	actions, err := p.OnRaw(context.Background(), "orders", map[string]any{"order_id": "abc", "kind": "placed"}, now)
	require.NoError(t, err)
	assert.Empty(t, actions)

	later := now.Add(time.Minute)
	actions, err = p.OnRaw(context.Background(), "orders", map[string]any{"order_id": "abc", "kind": "shipped"}, later)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "complete", actions[0].Payload)
}

func TestProcessor_OnExpiry_ReadsExistingContextWithoutMutating(t *testing.T) {
	classifier, keyer := newTestClassifierAndKeyer()
	st := store.NewMemoryStore()

	engine := predicate.NewStubEngine()
	handle, err := engine.Store("always-nil")
	require.NoError(t, err)
	engine.Register("always-nil", func(triggerJSON, contextJSON any) (any, error) { return nil, nil })

	timing := driver.NewTimingConfig(time.Minute, 0, 0, false, false)
	rule := driver.Rule{
		Name:            "waits",
		PredicateHandle: handle,
		HasPredicate:    true,
		Requirement:     driver.NoRequirement(),
		Timing:          &timing,
		Action:          driver.ActionSpec{Target: "out", Template: mustTemplate(t, "x")},
	}
	p := driver.NewProcessor(classifier, keyer, st, []driver.Rule{rule}, engine)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = p.OnRaw(context.Background(), "orders", map[string]any{"order_id": "abc", "kind": "placed"}, now)
	require.NoError(t, err)

	txn, err := st.Begin("abc")
	require.NoError(t, err)
	before, err := txn.Read()
	require.NoError(t, err)
	txn.Rollback()

	entry := expiry.Entry{ExpiresAt: now.Add(time.Minute), CorrelationKey: "abc", RuleName: "waits"}
	_, err = p.OnExpiry(context.Background(), entry, now.Add(time.Minute))
	require.NoError(t, err)

	txn2, err := st.Begin("abc")
	require.NoError(t, err)
	after, err := txn2.Read()
	require.NoError(t, err)
	txn2.Rollback()

	assert.Equal(t, len(before), len(after), "OnExpiry must not mutate the store")
}

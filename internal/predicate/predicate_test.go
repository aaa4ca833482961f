package predicate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/combiner/internal/predicate"
)

func TestDefault_NoEvents(t *testing.T) {
	out, err := predicate.Default(map[string]any{"type": "timer_expired"}, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDefault_EmptyEventArraysAreOmitted(t *testing.T) {
	trigger := map[string]any{"type": "timer_expired", "timestamp": int64(1)}
	ctx := map[string]any{"events": map[string]any{"order_placed": []any{}}}
	out, err := predicate.Default(trigger, ctx)
	require.NoError(t, err)
	assert.Nil(t, out, "an event type with no entries must not count as present")
}

func TestDefault_WithContextEvents(t *testing.T) {
	trigger := map[string]any{"type": "timer_expired", "timestamp": int64(5)}
	ctx := map[string]any{"events": map[string]any{
		"order_placed": []any{map[string]any{"id": "1"}},
	}}
	out, err := predicate.Default(trigger, ctx)
	require.NoError(t, err)
	require.NotNil(t, out)

	result := out.(map[string]any)
	assert.Equal(t, map[string]any{"type": "timer_expired", "timestamp": int64(5)}, result["trigger"])
	assert.Equal(t, map[string]any{"order_placed": []any{map[string]any{"id": "1"}}}, result["events"])
	assert.Equal(t, map[string]any{"order_placed_count": 1}, result["meta"])
}

// A lone NonCorrelated (or otherwise friendless) ReceivedEvent leaves
// the context empty; the default predicate must still treat the
// trigger's own event as present, and expose it at trigger.event.
func TestDefault_LoneReceivedEventTrigger_TreatedAsPresent(t *testing.T) {
	trigger := map[string]any{
		"type":      "received_event",
		"timestamp": int64(7),
		"event":     map[string]any{"id": "7"},
	}
	out, err := predicate.Default(trigger, map[string]any{"sequence": []any{}, "events": map[string]any{}})
	require.NoError(t, err)
	require.NotNil(t, out)

	result := out.(map[string]any)
	triggerOut := result["trigger"].(map[string]any)
	assert.Equal(t, map[string]any{"id": "7"}, triggerOut["event"])
}

func TestDefault_NonMapInput(t *testing.T) {
	out, err := predicate.Default("not a map", "not a map")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGojaEngine_ReturnsExtractionPayload(t *testing.T) {
	eng := predicate.NewGojaEngine()
	h, err := eng.Store(`return { total: context.events.order_placed.length };`)
	require.NoError(t, err)

	ctx := map[string]any{
		"events": map[string]any{
			"order_placed": []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}},
		},
	}
	out, err := eng.Evaluate(h, map[string]any{}, ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total": int64(2)}, out)
}

func TestGojaEngine_NullMeansNotSatisfied(t *testing.T) {
	eng := predicate.NewGojaEngine()
	h, err := eng.Store(`return null;`)
	require.NoError(t, err)

	out, err := eng.Evaluate(h, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGojaEngine_CompileErrorFailsFast(t *testing.T) {
	eng := predicate.NewGojaEngine()
	_, err := eng.Store(`this is not valid js {{{`)
	require.Error(t, err)
}

func TestGojaEngine_RuntimeErrorWrapsEvaluationError(t *testing.T) {
	eng := predicate.NewGojaEngine()
	h, err := eng.Store(`return trigger.missing.deeper;`)
	require.NoError(t, err)

	_, err = eng.Evaluate(h, map[string]any{}, map[string]any{})
	require.Error(t, err)
	var evalErr *predicate.EvaluationError
	require.ErrorAs(t, err, &evalErr)
}

func TestGojaEngine_UnknownHandle(t *testing.T) {
	eng := predicate.NewGojaEngine()
	_, err := eng.Evaluate(predicate.Handle(999), nil, nil)
	require.Error(t, err)
}

func TestStubEngine_RegisteredFunction(t *testing.T) {
	stub := predicate.NewStubEngine()
	stub.Register("always-true", func(triggerJSON, contextJSON any) (any, error) {
		return map[string]any{"ok": true}, nil
	})

	h, err := stub.Store("always-true")
	require.NoError(t, err)
	out, err := stub.Evaluate(h, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)
}

func TestStubEngine_UnregisteredSourceFails(t *testing.T) {
	stub := predicate.NewStubEngine()
	_, err := stub.Store("missing")
	require.Error(t, err)
}

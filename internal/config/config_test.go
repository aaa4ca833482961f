package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/combiner/internal/cerrors"
	"github.com/randalmurphal/combiner/internal/config"
)

const validYAML = `
correlation:
  order_placed:
    key: $.orderId
connections:
  orders:
    type: rabbitmq
    host: localhost
    port: 5672
    queue: orders
  out:
    type: stdout
events:
  order_placed:
    from: orders
    matchKey:
      $.type: order_placed
triggers:
  order_fulfilled:
    requires:
      exact: [order_placed]
    timing:
      from: 5m
      check_every: 1m
      until: 24h
    action:
      target: out
      payload:
        out: "${{ trigger.event.id }}"
`

func TestLoad_ParsesDocument(t *testing.T) {
	doc, err := config.Load([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "$.orderId", doc.Correlation["order_placed"].Key)
	assert.Equal(t, "rabbitmq", doc.Connections["orders"].Type)
	assert.Equal(t, "localhost", doc.Connections["orders"].Settings.String("host", ""))
	assert.Equal(t, 5672, doc.Connections["orders"].Settings.Int("port", 0))
	assert.Equal(t, "orders", doc.Events["order_placed"].From)
	assert.False(t, doc.Events["order_placed"].Pattern.All)
	assert.Equal(t, "order_placed", doc.Events["order_placed"].Pattern.Rules["$.type"].Exact)

	trigger := doc.Triggers["order_fulfilled"]
	assert.Equal(t, []string{"order_placed"}, trigger.Requires.Exact)
	assert.Equal(t, "out", trigger.Action.Target)
	require.NotNil(t, trigger.Action.Payload)
	require.NotNil(t, trigger.Timing)
	assert.Equal(t, "5m", trigger.Timing.From)
}

func TestValidate_ValidDocumentPasses(t *testing.T) {
	doc, err := config.Load([]byte(validYAML))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
}

func TestValidate_UnknownConnectionReferencedByEvent(t *testing.T) {
	doc, err := config.Load([]byte(`
connections:
  out: { type: stdout }
events:
  order_placed:
    from: missing
    matchAll: {}
triggers: {}
`))
	require.NoError(t, err)
	err = doc.Validate()
	require.Error(t, err)
	var cerr *cerrors.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, cerrors.ConfigInvalid, cerr.Kind)
}

func TestValidate_RequiresBothExactAndAtLeastFails(t *testing.T) {
	doc, err := config.Load([]byte(`
connections:
  out: { type: stdout }
events: {}
triggers:
  bad:
    requires:
      exact: [a]
      at_least: [b]
    action:
      target: out
      payload: "x"
`))
	require.NoError(t, err)
	require.Error(t, doc.Validate())
}

func TestValidate_UnknownConnectionTypeFails(t *testing.T) {
	doc, err := config.Load([]byte(`
connections:
  weird: { type: carrier-pigeon }
events: {}
triggers: {}
`))
	require.NoError(t, err)
	require.Error(t, doc.Validate())
}

func TestPatternMatcher_RegexForm(t *testing.T) {
	doc, err := config.Load([]byte(`
connections:
  out: { type: stdout }
events:
  shipment:
    from: out
    matchKey:
      $.status:
        regex: "^shipped"
triggers: {}
`))
	require.NoError(t, err)
	matcher := doc.Events["shipment"].Pattern.Rules["$.status"]
	assert.True(t, matcher.IsRegex)
	assert.Equal(t, "^shipped", matcher.Regex)
	require.NoError(t, doc.Validate())
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"500ms": 500 * time.Millisecond,
		"30s":   30 * time.Second,
		"5m":    5 * time.Minute,
		"2h":    2 * time.Hour,
		"1d":    24 * time.Hour,
	}
	for input, want := range cases {
		got, err := config.ParseDuration(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	_, err := config.ParseDuration("nope")
	assert.Error(t, err)
	_, err = config.ParseDuration("10")
	assert.Error(t, err)
	_, err = config.ParseDuration("10x")
	assert.Error(t, err)
}

func TestSettings_Defaults(t *testing.T) {
	s := config.New(nil)
	assert.Equal(t, "fallback", s.String("missing", "fallback"))
	assert.Equal(t, 7, s.Int("missing", 7))
	assert.True(t, s.Bool("missing", true))
	assert.Equal(t, time.Second, s.Duration("missing", time.Second))
}

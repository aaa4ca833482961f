package jsonpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/combiner/internal/jsonpath"
)

func TestParse(t *testing.T) {
	cases := map[string][]string{
		"$.a.b": {"a", "b"},
		"$a.b":  {"a", "b"},
		"a.b":   {"a", "b"},
		"tx":    {"tx"},
		"":      nil,
	}
	for expr, want := range cases {
		assert.Equal(t, want, jsonpath.Parse(expr), "expr=%q", expr)
	}
}

func TestExtract_Success(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"id": "42",
		},
	}
	v, err := jsonpath.ExtractExpr(data, "$.user.id")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestExtract_MissingField(t *testing.T) {
	data := map[string]any{"type": "X"}
	_, err := jsonpath.ExtractExpr(data, "$.tx")
	require.Error(t, err)
	var nf *jsonpath.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "tx", nf.Segment)
}

func TestExtract_NonMapIntermediate(t *testing.T) {
	data := map[string]any{"type": "X"}
	_, err := jsonpath.ExtractExpr(data, "$.type.nested")
	require.Error(t, err)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "42", jsonpath.Canonical(float64(42)))
	assert.Equal(t, "hello", jsonpath.Canonical("hello"))
	assert.Equal(t, "true", jsonpath.Canonical(true))
	assert.Equal(t, "null", jsonpath.Canonical(nil))
	assert.Equal(t, "[1, 2, 3]", jsonpath.Canonical([]any{float64(1), float64(2), float64(3)}))
	assert.Equal(t, "{a: 1, b: 2}", jsonpath.Canonical(map[string]any{"b": float64(2), "a": float64(1)}))
}

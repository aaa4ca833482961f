package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestEnrich_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := Enrich(newTestLogger(&buf), "checkout-service", "user-42", "order-fulfilled")
	logger.Info("evaluating")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "checkout-service", entry["source"])
	assert.Equal(t, "user-42", entry["correlation_key"])
	assert.Equal(t, "order-fulfilled", entry["rule_name"])
}

func TestEnrich_NilLoggerIsNil(t *testing.T) {
	assert.Nil(t, Enrich(nil, "a", "b", "c"))
}

func TestLogPerEventError_IncludesKindAndError(t *testing.T) {
	var buf bytes.Buffer
	LogPerEventError(newTestLogger(&buf), "field_not_found", "checkout-service", errors.New("no such field"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "field_not_found", entry["kind"])
	assert.Equal(t, "no such field", entry["error"])
}

func TestTimedOperation_ReportsNonNegativeDuration(t *testing.T) {
	done := TimedOperation()
	ms := done()
	assert.GreaterOrEqual(t, ms, float64(0))
}

// Package jsonpath implements the single dotted-path JSON field
// extraction rule shared by the CorrelationKeyer (spec.md §4.2) and the
// PayloadTemplate renderer (spec.md §4.7): strip an optional leading
// "$", split on ".", and descend field by field through nested maps.
//
// It is deliberately not a general JSONPath implementation (no
// wildcards, no array indexing, no filters) — the spec names exactly
// this restricted grammar, grounded on the original Rust
// implementation's extract_json.rs.
package jsonpath

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Parse splits a path expression into its dotted segments, stripping
// an optional leading "$". "$.a.b", "$a.b", and "a.b" all yield
// []string{"a", "b"}. An empty expression yields an empty segment
// list, which Extract resolves to the root value.
func Parse(expr string) []string {
	expr = strings.TrimPrefix(expr, "$")
	expr = strings.TrimPrefix(expr, ".")
	if expr == "" {
		return nil
	}
	return strings.Split(expr, ".")
}

// NotFoundError reports which segment of a path could not be resolved.
type NotFoundError struct {
	Path    string
	Segment string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("jsonpath: field %q not found in path %q", e.Segment, e.Path)
}

// Extract descends through data one segment at a time. data is
// expected to be the decoded-JSON shape: map[string]any, []any,
// strings, numbers, bools, or nil. It returns (value, nil) on success
// and (nil, *NotFoundError) the moment a segment can't be resolved —
// either because the current value isn't a map, or the key is absent.
func Extract(data any, segments []string) (any, error) {
	cur := data
	for i, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &NotFoundError{Path: strings.Join(segments, "."), Segment: seg}
		}
		v, ok := m[seg]
		if !ok {
			return nil, &NotFoundError{Path: strings.Join(segments, "."), Segment: seg}
		}
		cur = v
		_ = i
	}
	return cur, nil
}

// ExtractExpr is a convenience that combines Parse and Extract.
func ExtractExpr(data any, expr string) (any, error) {
	return Extract(data, Parse(expr))
}

// Canonical renders a JSON value to its canonical string form per
// spec.md §4.7: scalars render as their natural textual form, arrays
// as "[a, b, …]", objects as "{k: v, …}" with keys in sorted order so
// rendering is deterministic.
func Canonical(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Canonical(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + Canonical(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}

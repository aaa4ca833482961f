package classify

import (
	"github.com/randalmurphal/combiner/internal/jsonpath"
)

// Keyer extracts the correlation key for each event type, per
// spec.md §4.2.
type Keyer struct {
	paths map[string]string // event type -> json path
}

// NewKeyer builds a Keyer from the event-type-to-path map declared in
// the correlation section of the config document.
func NewKeyer(paths map[string]string) *Keyer {
	cp := make(map[string]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	return &Keyer{paths: cp}
}

// Key extracts the correlation key for an event of the given type.
// If no path is registered for the type, the event is non-correlated
// (ok=false, err=nil). If a path is registered but extraction fails,
// it returns FieldNotFoundError. Otherwise it returns the canonical
// string form of the extracted value.
func (k *Keyer) Key(eventType string, data map[string]any) (key string, ok bool, err error) {
	path, registered := k.paths[eventType]
	if !registered {
		return "", false, nil
	}
	v, extractErr := jsonpath.ExtractExpr(data, path)
	if extractErr != nil {
		return "", false, &FieldNotFoundError{EventType: eventType, Path: path, Cause: extractErr}
	}
	return jsonpath.Canonical(v), true, nil
}

// FieldNotFoundError wraps a failed correlation-key extraction.
type FieldNotFoundError struct {
	EventType string
	Path      string
	Cause     error
}

func (e *FieldNotFoundError) Error() string {
	return "classify: correlation key extraction failed for event type " + e.EventType + " at path " + e.Path + ": " + e.Cause.Error()
}

func (e *FieldNotFoundError) Unwrap() error { return e.Cause }

package predicate

import "fmt"

// StubFunc is a pure Go stand-in for a compiled JavaScript predicate,
// used by StubEngine.
type StubFunc func(triggerJSON, contextJSON any) (any, error)

// StubEngine implements Engine by mapping predicate source strings to
// Go functions registered ahead of time, so rule-evaluation tests
// don't need to embed real JavaScript (spec.md §9).
type StubEngine struct {
	funcs map[string]StubFunc
	byID  map[Handle]string
	next  Handle
}

// NewStubEngine returns a StubEngine with no registered sources. Call
// Register before Store is used with a matching source string.
func NewStubEngine() *StubEngine {
	return &StubEngine{
		funcs: make(map[string]StubFunc),
		byID:  make(map[Handle]string),
	}
}

// Register associates a source string with the function Store/Evaluate
// should run for it.
func (s *StubEngine) Register(source string, fn StubFunc) {
	s.funcs[source] = fn
}

// Store looks up source in the registered functions. Unregistered
// source strings are a configuration error, matching the real engine's
// compile-time failure for invalid JavaScript.
func (s *StubEngine) Store(source string) (Handle, error) {
	if _, ok := s.funcs[source]; !ok {
		return 0, fmt.Errorf("predicate: stub: no function registered for source %q", source)
	}
	h := s.next
	s.next++
	s.byID[h] = source
	return h, nil
}

// Evaluate runs the function registered for the handle's source.
func (s *StubEngine) Evaluate(h Handle, triggerJSON, contextJSON any) (any, error) {
	source, ok := s.byID[h]
	if !ok {
		return nil, &EvaluationError{Handle: h, Err: fmt.Errorf("unknown predicate handle")}
	}
	fn := s.funcs[source]
	result, err := fn(triggerJSON, contextJSON)
	if err != nil {
		return nil, &EvaluationError{Handle: h, Err: err}
	}
	return result, nil
}

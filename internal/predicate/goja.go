package predicate

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/randalmurphal/combiner/internal/registry"
)

// GojaEngine implements Engine by wrapping each predicate source as a
// (trigger, context) function, compiled once on Store and evaluated on
// an isolated goja.Runtime per call. A fresh runtime per Evaluate
// keeps predicates from accumulating global state across rule
// invocations (spec.md §4.4: predicates are pure functions of their
// two arguments).
type GojaEngine struct {
	programs *registry.Registry[Handle, *goja.Program]
	next     Handle
}

// NewGojaEngine returns an Engine backed by the embedded JavaScript
// runtime.
func NewGojaEngine() *GojaEngine {
	return &GojaEngine{programs: registry.New[Handle, *goja.Program]()}
}

// Store compiles source as the body of a function taking (trigger,
// context) and returns a handle for later Evaluate calls. Compile
// errors are returned immediately so a misconfigured rule fails at
// startup rather than on the first matching event.
func (g *GojaEngine) Store(source string) (Handle, error) {
	wrapped := "(function(trigger, context) {\n" + source + "\n})"
	prog, err := goja.Compile("predicate", wrapped, true)
	if err != nil {
		return 0, fmt.Errorf("predicate: compile: %w", err)
	}
	h := g.next
	g.next++
	g.programs.Register(h, prog)
	return h, nil
}

// Evaluate runs the compiled predicate against trigger and context,
// both already JSON-shaped values. A JavaScript null/undefined return
// is "not satisfied" (nil, nil); any other value is exported back to
// plain Go types (map[string]any / []any / scalars).
func (g *GojaEngine) Evaluate(h Handle, triggerJSON, contextJSON any) (any, error) {
	prog, ok := g.programs.Get(h)
	if !ok {
		return nil, &EvaluationError{Handle: h, Err: fmt.Errorf("unknown predicate handle")}
	}

	vm := goja.New()
	fnValue, err := vm.RunProgram(prog)
	if err != nil {
		return nil, &EvaluationError{Handle: h, Err: err}
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, &EvaluationError{Handle: h, Err: fmt.Errorf("predicate did not compile to a function")}
	}

	result, err := fn(goja.Undefined(), vm.ToValue(triggerJSON), vm.ToValue(contextJSON))
	if err != nil {
		return nil, &EvaluationError{Handle: h, Err: err}
	}
	if goja.IsNull(result) || goja.IsUndefined(result) {
		return nil, nil
	}

	exported := result.Export()
	if _, err := isJSONRepresentable(exported); err != nil {
		return nil, &EvaluationError{Handle: h, Err: err}
	}
	return exported, nil
}

// isJSONRepresentable rejects goja exports that have no JSON shape
// (functions, channels, goja's own Symbol type). Numbers, strings,
// bools, nil, []any and map[string]any all pass through.
func isJSONRepresentable(v any) (bool, error) {
	switch val := v.(type) {
	case nil, bool, string, int64, float64:
		return true, nil
	case []any:
		for _, elem := range val {
			if _, err := isJSONRepresentable(elem); err != nil {
				return false, err
			}
		}
		return true, nil
	case map[string]any:
		for _, elem := range val {
			if _, err := isJSONRepresentable(elem); err != nil {
				return false, err
			}
		}
		return true, nil
	default:
		return false, ErrNonJSONReturn
	}
}

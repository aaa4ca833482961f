package classify

import (
	"github.com/randalmurphal/combiner/internal/jsonpath"
)

// Classifier maps a raw inbound payload plus its source name to zero
// or more event types, per spec.md §4.1.
type Classifier struct {
	defs []TypeDefinition
}

// New builds a Classifier from its configured type definitions.
// Evaluation order is immaterial (spec.md §4.1), so New keeps the
// given order only for determinism in tests, not because it's load
// bearing.
func New(defs []TypeDefinition) *Classifier {
	return &Classifier{defs: append([]TypeDefinition(nil), defs...)}
}

// Classify returns the event types a payload from source matches.
// A single payload may match multiple definitions; duplicates are
// preserved — one classification per matching definition.
func (c *Classifier) Classify(source string, data map[string]any) []string {
	var types []string
	for _, def := range c.defs {
		if def.SourceName != source {
			continue
		}
		if matches(def.Pattern, data) {
			types = append(types, def.EventType)
		}
	}
	return types
}

// Sources returns the unique set of source names referenced by the
// configured definitions, so the configuration layer knows exactly
// which receivers to open.
func (c *Classifier) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, def := range c.defs {
		if _, ok := seen[def.SourceName]; ok {
			continue
		}
		seen[def.SourceName] = struct{}{}
		out = append(out, def.SourceName)
	}
	return out
}

func matches(p Pattern, data map[string]any) bool {
	if p.all {
		return true
	}
	if len(p.rules) == 0 {
		return false
	}
	for _, rule := range p.rules {
		v, err := jsonpath.ExtractExpr(data, rule.Path)
		if err != nil {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		if !rule.Matcher.match(s) {
			return false
		}
	}
	return true
}

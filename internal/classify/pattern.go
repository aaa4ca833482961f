// Package classify implements the Classifier and CorrelationKeyer of
// spec.md §4.1–4.2: mapping a raw payload plus its source name to zero
// or more named event types, and extracting a correlation key for each.
package classify

import "regexp"

// Matcher tests a single extracted string value.
type Matcher interface {
	match(value string) bool
}

// Exact matches a value by string equality.
type Exact string

func (e Exact) match(value string) bool { return value == string(e) }

// Regex matches a value by regular-expression search (not full match —
// spec.md §4.1 says "satisfies the matcher (equality or regex
// search)").
type Regex struct {
	re *regexp.Regexp
}

// CompileRegex compiles a regular expression into a Matcher.
func CompileRegex(expr string) (Regex, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Regex{}, err
	}
	return Regex{re: re}, nil
}

func (r Regex) match(value string) bool { return r.re.MatchString(value) }

// FieldMatch pairs a JSON path with the matcher its extracted value
// must satisfy.
type FieldMatch struct {
	Path    string
	Matcher Matcher
}

// Pattern is either unconditional (All) or a conjunction of field
// matches (MatchRules). The zero value is MatchRules with no rules,
// which never matches — use All explicitly for unconditional patterns.
type Pattern struct {
	all   bool
	rules []FieldMatch
}

// All returns the unconditional pattern.
func All() Pattern { return Pattern{all: true} }

// MatchRules returns a pattern requiring every rule to match.
func MatchRules(rules ...FieldMatch) Pattern { return Pattern{rules: rules} }

// TypeDefinition binds a source name and pattern to the event type
// produced when the pattern matches a payload from that source.
type TypeDefinition struct {
	SourceName string
	Pattern    Pattern
	EventType  string
}

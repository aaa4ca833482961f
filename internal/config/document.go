// Package config loads and validates the declarative document of
// spec.md §6: a typed top-level structure (correlation, connections,
// events, triggers) plus an untyped per-connection settings accessor
// for connection-type-specific fields the core never interprets.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the parsed, not-yet-validated configuration document.
type Document struct {
	Correlation map[string]CorrelationEntry `yaml:"correlation"`
	Connections map[string]ConnectionSpec   `yaml:"connections"`
	Events      map[string]EventDefinition  `yaml:"events"`
	Triggers    map[string]TriggerSpec      `yaml:"triggers"`
}

// CorrelationEntry names the JSON path used to derive the correlation
// key for one event type.
type CorrelationEntry struct {
	Key string `yaml:"key"`
}

// ConnectionSpec is a named transport connection. Type selects the
// adapter (rabbitmq/stdout/file); Settings holds every other field,
// untyped, since each adapter has its own configuration shape the
// core never needs to know about.
type ConnectionSpec struct {
	Type     string
	Settings Settings
}

func (c *ConnectionSpec) UnmarshalYAML(n *yaml.Node) error {
	var raw map[string]any
	if err := n.Decode(&raw); err != nil {
		return err
	}
	typ, _ := raw["type"].(string)
	delete(raw, "type")
	c.Type = typ
	c.Settings = New(raw)
	return nil
}

// EventDefinition names the connection an event type is read from and
// the match pattern that classifies a raw payload as that type.
type EventDefinition struct {
	From     string `yaml:"from"`
	Pattern  Pattern
}

func (e *EventDefinition) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		From     string                    `yaml:"from"`
		MatchAll map[string]any            `yaml:"matchAll"`
		MatchKey map[string]PatternMatcher `yaml:"matchKey"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	e.From = raw.From
	if raw.MatchAll != nil {
		e.Pattern = Pattern{All: true}
		return nil
	}
	e.Pattern = Pattern{Rules: raw.MatchKey}
	return nil
}

// Pattern is either matchAll or a set of per-path matchers, mirroring
// internal/classify.Pattern's two constructors.
type Pattern struct {
	All   bool
	Rules map[string]PatternMatcher
}

// PatternMatcher is a YAML-level match pattern: a bare string (exact
// match) or a mapping {regex: <expr>}.
type PatternMatcher struct {
	Exact string
	Regex string
	IsRegex bool
}

func (p *PatternMatcher) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		p.Exact = n.Value
		return nil
	}
	var raw struct {
		Regex string `yaml:"regex"`
	}
	if err := n.Decode(&raw); err != nil {
		return fmt.Errorf("config: pattern must be a string or {regex: ...}: %w", err)
	}
	p.Regex = raw.Regex
	p.IsRegex = true
	return nil
}

// RequirementSpec is a rule's declared Requirement: exactly one of
// Exact or AtLeast is set.
type RequirementSpec struct {
	Exact   []string `yaml:"exact"`
	AtLeast []string `yaml:"at_least"`
}

// TimingSpec holds the raw duration strings for a rule's recheck
// schedule; ParseDuration converts each at validation time.
type TimingSpec struct {
	From       string `yaml:"from"`
	CheckEvery string `yaml:"check_every"`
	Until      string `yaml:"until"`
}

// ActionSpec is a rule's emission target and payload template. Payload
// is kept as a raw *yaml.Node so internal/template.Compile can see
// the original mapping key order.
type ActionSpec struct {
	Target  string
	Payload *yaml.Node
}

func (a *ActionSpec) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Target  string    `yaml:"target"`
		Payload yaml.Node `yaml:"payload"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	a.Target = raw.Target
	if raw.Payload.Kind != 0 {
		a.Payload = &raw.Payload
	}
	return nil
}

// TriggerSpec is one named rule.
type TriggerSpec struct {
	Requires         RequirementSpec `yaml:"requires"`
	FilterAndExtract string          `yaml:"filterAndExtract"`
	Timing           *TimingSpec     `yaml:"timing"`
	Action           ActionSpec      `yaml:"action"`
}

// Load parses a YAML document from bytes into a Document. It does not
// validate cross-references (connection names, event types) — call
// Validate for that.
func Load(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &doc, nil
}

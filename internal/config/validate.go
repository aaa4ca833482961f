package config

import (
	"fmt"

	"github.com/randalmurphal/combiner/internal/cerrors"
	"github.com/randalmurphal/combiner/internal/classify"
)

// Validate checks cross-references and structural constraints Load
// doesn't, returning a *cerrors.Error of kind ConfigInvalid on the
// first problem found. Grounded on the original implementation's
// config/builder.rs TryFrom, which rejects a config at construction
// time rather than deferring to first use.
func (d *Document) Validate() error {
	for name, conn := range d.Connections {
		switch conn.Type {
		case "rabbitmq", "stdout", "file":
		default:
			return invalid(fmt.Sprintf("connection %q", name), fmt.Errorf("unknown connection type %q", conn.Type))
		}
	}

	for eventType, def := range d.Events {
		if def.From == "" {
			return invalid(fmt.Sprintf("event %q", eventType), fmt.Errorf("missing \"from\" connection"))
		}
		if _, ok := d.Connections[def.From]; !ok {
			return invalid(fmt.Sprintf("event %q", eventType), fmt.Errorf("references unknown connection %q", def.From))
		}
		if !def.Pattern.All {
			for path, matcher := range def.Pattern.Rules {
				if matcher.IsRegex {
					if _, err := classify.CompileRegex(matcher.Regex); err != nil {
						return invalid(fmt.Sprintf("event %q matchKey %q", eventType, path), err)
					}
				}
			}
		}
	}

	for ruleName, trigger := range d.Triggers {
		hasExact := len(trigger.Requires.Exact) > 0
		hasAtLeast := len(trigger.Requires.AtLeast) > 0
		if hasExact && hasAtLeast {
			return invalid(fmt.Sprintf("trigger %q", ruleName), fmt.Errorf("requires both exact and at_least"))
		}
		for _, required := range append(append([]string(nil), trigger.Requires.Exact...), trigger.Requires.AtLeast...) {
			if _, ok := d.Events[required]; !ok {
				return invalid(fmt.Sprintf("trigger %q", ruleName), fmt.Errorf("requires undeclared event type %q", required))
			}
		}

		if trigger.Action.Target == "" {
			return invalid(fmt.Sprintf("trigger %q", ruleName), fmt.Errorf("missing action target"))
		}
		if _, ok := d.Connections[trigger.Action.Target]; !ok {
			return invalid(fmt.Sprintf("trigger %q", ruleName), fmt.Errorf("action target %q is not a connection", trigger.Action.Target))
		}
		if trigger.Action.Payload == nil {
			return invalid(fmt.Sprintf("trigger %q", ruleName), fmt.Errorf("missing action payload"))
		}

		if trigger.Timing != nil {
			for label, raw := range map[string]string{
				"timing.from":        trigger.Timing.From,
				"timing.check_every": trigger.Timing.CheckEvery,
				"timing.until":       trigger.Timing.Until,
			} {
				if raw == "" {
					continue
				}
				if _, err := ParseDuration(raw); err != nil {
					return invalid(fmt.Sprintf("trigger %q %s", ruleName, label), err)
				}
			}
		}
	}

	return nil
}

func invalid(context string, err error) *cerrors.Error {
	return cerrors.New(cerrors.ConfigInvalid, context, err)
}

package driver

import (
	"github.com/randalmurphal/combiner/internal/event"
)

// triggerJSON builds the predicate-engine-facing JSON shape for a
// Trigger, per spec.md §4.4: a ReceivedEvent carries its event's data,
// a TimerExpired carries only its timestamp.
func triggerJSON(t Trigger) map[string]any {
	switch t.Kind {
	case ReceivedEvent:
		return map[string]any{
			"type":      "received_event",
			"timestamp": t.At.Unix(),
			"event":     t.Event.Data,
		}
	default:
		return map[string]any{
			"type":      "timer_expired",
			"timestamp": t.At.Unix(),
		}
	}
}

// eventJSON builds the {type, data} shape an Event takes inside a
// context's "sequence" and "events" fields.
func eventJSON(e event.Event) map[string]any {
	return map[string]any{
		"type": e.EventType,
		"data": e.Data,
	}
}

// contextJSON builds the predicate-engine-facing JSON shape for a
// Context, per spec.md §4.4: an ordered "sequence" plus a by-type
// "events" index, both rendered as {type, data} pairs.
func contextJSON(ctx event.Context) map[string]any {
	sequence := make([]any, 0, ctx.Len())
	for _, e := range ctx.Sequence {
		sequence = append(sequence, eventJSON(e))
	}

	events := make(map[string]any, len(ctx.Types()))
	for t := range ctx.Types() {
		byType := ctx.ByType(t)
		list := make([]any, 0, len(byType))
		for _, e := range byType {
			list = append(list, eventJSON(e))
		}
		events[t] = list
	}

	return map[string]any{
		"sequence": sequence,
		"events":   events,
	}
}

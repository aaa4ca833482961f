// Package event defines the wire-level data model the rest of the
// correlation engine is built on: the raw payload a transport delivers,
// and the classified event a RawEvent becomes once the classifier has
// assigned it a type and (optionally) a correlation key.
package event

import (
	"time"
)

// Raw is a transport payload as delivered, before classification.
// It is immutable once constructed.
type Raw struct {
	Received time.Time
	Data     map[string]any
}

// Kind distinguishes the two shapes an Event can take.
type Kind int

const (
	// Correlated events share a correlation key with zero or more
	// other events and accumulate in an EventContext.
	Correlated Kind = iota
	// NonCorrelated events have no correlation key; each one is
	// evaluated alone, with an empty context.
	NonCorrelated
)

// Event is a classified occurrence: a RawEvent plus the event type the
// Classifier assigned it, and either a correlation key (Correlated) or
// a synthetic unique ID (NonCorrelated). The zero value is not valid;
// construct with NewCorrelated or NewNonCorrelated.
type Event struct {
	Kind           Kind
	Received       time.Time
	EventType      string
	CorrelationKey string // set iff Kind == Correlated
	EventID        string // set iff Kind == NonCorrelated
	Data           map[string]any
}

// NewCorrelated builds a Correlated event.
func NewCorrelated(received time.Time, correlationKey, eventType string, data map[string]any) Event {
	return Event{
		Kind:           Correlated,
		Received:       received,
		EventType:      eventType,
		CorrelationKey: correlationKey,
		Data:           data,
	}
}

// NewNonCorrelated builds a NonCorrelated event with the given unique ID.
func NewNonCorrelated(received time.Time, eventID, eventType string, data map[string]any) Event {
	return Event{
		Kind:      NonCorrelated,
		Received:  received,
		EventType: eventType,
		EventID:   eventID,
		Data:      data,
	}
}

// WithReceived returns a copy of e with Received overwritten. Tests use
// this to pin timestamps deterministically; production code never
// mutates an Event after construction.
func (e Event) WithReceived(t time.Time) Event {
	e.Received = t
	return e
}

// Context is the ordered sequence of events sharing a correlation key,
// plus a by-type index for fast lookup. It never itself contains the
// triggering event of the evaluation it's built for.
type Context struct {
	Sequence []Event
	byType   map[string][]Event
}

// NewContext builds a Context from an ordered event slice. It panics if
// the invariant "a NonCorrelated event never coexists with any other
// event" is violated, since that indicates a bug in the caller (the
// EventStore and Processor are responsible for never constructing such
// a slice) rather than a recoverable runtime condition.
func NewContext(events []Event) Context {
	if hasNonCorrelatedMix(events) {
		panic("event: context mixes a NonCorrelated event with others")
	}
	byType := make(map[string][]Event, len(events))
	for _, e := range events {
		byType[e.EventType] = append(byType[e.EventType], e)
	}
	return Context{Sequence: events, byType: byType}
}

// ByType returns the events of a given type, in sequence order.
func (c Context) ByType(eventType string) []Event {
	return c.byType[eventType]
}

// Types returns the set of distinct event types present, unordered.
func (c Context) Types() map[string]struct{} {
	set := make(map[string]struct{}, len(c.byType))
	for t := range c.byType {
		set[t] = struct{}{}
	}
	return set
}

// Len reports the number of events in the context.
func (c Context) Len() int { return len(c.Sequence) }

func hasNonCorrelatedMix(events []Event) bool {
	if len(events) <= 1 {
		return false
	}
	for _, e := range events {
		if e.Kind == NonCorrelated {
			return true
		}
	}
	return false
}

// Package cerrors implements the error taxonomy of spec.md §7: each
// kind carries a fixed recovery Category (fatal, per-event, or
// retry-once) so callers can dispatch on Category instead of
// re-deriving policy at every call site.
package cerrors

import "fmt"

// Category is how an error of a given Kind should be handled.
type Category int

const (
	// Fatal errors stop the process: config failed to parse, or
	// persistent state (the expiry file) can no longer be trusted.
	Fatal Category = iota

	// PerEvent errors are logged and the offending event or evaluation
	// is skipped; the Driver loop continues.
	PerEvent

	// RetryOnce errors are retried a single time by the caller before
	// falling back to PerEvent handling.
	RetryOnce
)

func (c Category) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case PerEvent:
		return "per_event"
	case RetryOnce:
		return "retry_once"
	default:
		return "unknown"
	}
}

// Kind identifies which spec.md §7 error kind produced an Error.
type Kind int

const (
	// ConfigInvalid: structural problems detected at startup.
	ConfigInvalid Kind = iota
	// Messaging: transport connect/submit/receive failure.
	Messaging
	// EventMatch: predicate or classifier expected a field that was absent.
	EventMatch
	// FieldNotFound: JSON-path extraction found no such field.
	FieldNotFound
	// InvalidEventGroup: a rule saw a forbidden NonCorrelated+other combination.
	InvalidEventGroup
	// RuleEvaluation: the predicate engine raised during Evaluate.
	RuleEvaluation
	// Render: action template extraction failed.
	Render
	// StorageConflict: an optimistic EventStore transaction lost a race.
	StorageConflict
	// Io: disk or lock failure.
	Io
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "config_invalid"
	case Messaging:
		return "messaging"
	case EventMatch:
		return "event_match"
	case FieldNotFound:
		return "field_not_found"
	case InvalidEventGroup:
		return "invalid_event_group"
	case RuleEvaluation:
		return "rule_evaluation"
	case Render:
		return "render"
	case StorageConflict:
		return "storage_conflict"
	case Io:
		return "io"
	default:
		return "unknown"
	}
}

// Category returns the fixed recovery policy for a kind, per spec.md
// §7: local recovery for everything per-event; fatal only for
// ConfigInvalid and unrecoverable Io on persistent state.
func (k Kind) Category() Category {
	switch k {
	case ConfigInvalid:
		return Fatal
	case StorageConflict:
		return RetryOnce
	case Io:
		// Io is escalated to Fatal by callers that know it affects the
		// expiry file; the default here covers the common case of a
		// single message's transport I/O.
		return PerEvent
	default:
		return PerEvent
	}
}

// Error is a categorized engine error. Context names the entity
// involved (a source, correlation key, or rule name) for logging.
type Error struct {
	Kind    Kind
	Context string
	Err     error

	forceFatal bool
}

// New wraps err as a cerrors.Error of the given kind.
func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Category returns e's recovery policy, honoring FatalOnIo escalation.
func (e *Error) Category() Category {
	if e.forceFatal {
		return Fatal
	}
	return e.Kind.Category()
}

// FatalOnIo reclassifies an Io error as Fatal, for the expiry-file
// code path where spec.md §7 says Io "escalates to shutdown if it
// affects the expiry file."
func FatalOnIo(err *Error) *Error {
	if err.Kind != Io {
		return err
	}
	return &Error{Kind: err.Kind, Context: err.Context, Err: err.Err, forceFatal: true}
}

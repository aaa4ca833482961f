package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/randalmurphal/combiner/internal/cerrors"
	"github.com/randalmurphal/combiner/internal/expiry"
	"github.com/randalmurphal/combiner/internal/observability"
	"github.com/randalmurphal/combiner/internal/registry"
	"github.com/randalmurphal/combiner/internal/transport"
)

var (
	errNonObjectPayload = errors.New("driver: payload is not a JSON object")
	errUnknownTarget    = errors.New("driver: no submitter registered for action target")
)

// Driver is the single process-wide event loop of spec.md §4.9/§5: it
// drains a transport.Merger, dispatches every message and due expiry
// to a Processor, and carries out the Actions the Processor returns.
// The loop is single-threaded; all state access between its three
// suspension points (receive, submit, ack) is exclusive by
// construction.
type Driver struct {
	processor  *Processor
	merger     *transport.Merger
	expiryQ    expiry.Queue
	submitters *registry.Registry[string, transport.Submitter]
	deadLetter *transport.DeadLetter

	logger  *slog.Logger
	metrics observability.Recorder
	now     func() time.Time
}

// New builds a Driver wired to its collaborators. submitters is keyed
// by connection name, matching each rule's action target.
func New(processor *Processor, merger *transport.Merger, expiryQ expiry.Queue, submitters *registry.Registry[string, transport.Submitter], deadLetter *transport.DeadLetter, opts ...Option) *Driver {
	d := &Driver{
		processor:  processor,
		merger:     merger,
		expiryQ:    expiryQ,
		submitters: submitters,
		deadLetter: deadLetter,
		metrics:    observability.NoopMetrics{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// actionGroup pairs one batch member's produced actions with the ack
// closure the Driver must invoke once those actions are carried out
// (nil for expiry-sourced actions, which have no transport ack). The
// ack is skipped when any of the group's actions fails.
type actionGroup struct {
	actions []Action
	ack     func()
}

// Run drains the Merger and processes batches until ctx is cancelled
// or the Merger's receivers are exhausted. It returns nil on a clean
// shutdown (ctx cancellation) and a fatal error if one of the
// Processor's errors escalates per spec.md §7.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := d.runOnce(ctx); err != nil {
			if err == transport.ErrStreamFinished || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (d *Driver) runOnce(ctx context.Context) error {
	msgs, err := d.merger.ReceiveBatch(ctx)
	if err != nil {
		return err
	}

	var groups []actionGroup
	for _, msg := range msgs {
		raw, ok := msg.Payload.(map[string]any)
		if !ok {
			d.deadLetter.Record(msg.Source, "Messaging", errNonObjectPayload, d.now())
			continue
		}
		actions, err := d.processor.OnRaw(ctx, msg.Source, raw, d.now())
		if err != nil {
			if fatal := d.logOrFatal(msg.Source, err); fatal != nil {
				return fatal
			}
			continue
		}
		groups = append(groups, actionGroup{actions: actions, ack: msg.Ack})
	}

	if depther, ok := d.expiryQ.(interface{ Len() int }); ok {
		d.metrics.RecordExpiryQueueDepth(ctx, int64(depther.Len()))
	}

	for {
		due, ok := d.expiryQ.Peek()
		if !ok || due.ExpiresAt.After(d.now()) {
			break
		}
		actions, err := d.processor.OnExpiry(ctx, due, d.now())
		if err != nil {
			if fatal := d.logOrFatal("expiry:"+due.CorrelationKey, err); fatal != nil {
				return fatal
			}
		} else {
			groups = append(groups, actionGroup{actions: actions})
		}
		if err := d.expiryQ.Ack(d.now()); err != nil {
			return cerrors.FatalOnIo(cerrors.New(cerrors.Io, "expiry ack", err))
		}
	}

	for _, group := range groups {
		failed := false
		for _, a := range group.actions {
			if err := d.apply(ctx, a); err != nil {
				failed = true
				observability.LogPerEventError(d.logger, "Messaging", "action", err)
			}
		}
		if group.ack != nil && !failed {
			group.ack()
		}
	}

	return nil
}

func (d *Driver) apply(ctx context.Context, a Action) error {
	switch a.Kind {
	case Emit:
		sub, ok := d.submitters.Get(a.Target)
		if !ok {
			return cerrors.New(cerrors.ConfigInvalid, "action target "+a.Target, errUnknownTarget)
		}
		if err := sub.Submit(ctx, a.Payload); err != nil {
			d.deadLetter.Record(a.Target, "Messaging", err, d.now())
			return cerrors.New(cerrors.Messaging, "submit to "+a.Target, err)
		}
		return nil
	case ScheduleWakeup:
		if err := d.expiryQ.Nack(a.CorrelationKey); err != nil && err != expiry.ErrNoMatch {
			return cerrors.FatalOnIo(cerrors.New(cerrors.Io, "expiry nack", err))
		}
		entry := expiry.Entry{ExpiresAt: a.ExpiresAt, CorrelationKey: a.CorrelationKey, RuleName: a.RuleName}
		if err := d.expiryQ.Add(entry); err != nil {
			return cerrors.FatalOnIo(cerrors.New(cerrors.Io, "expiry add", err))
		}
		return nil
	default:
		return nil
	}
}

// logOrFatal logs a per-event-recoverable error and returns nil, or
// logs a fatal one and returns it for Run to propagate — only errors
// whose Category is Fatal stop the process, matching spec.md §7's
// policy table.
func (d *Driver) logOrFatal(evalContext string, err error) error {
	var cerr *cerrors.Error
	if asCerror(err, &cerr) && cerr.Category() == cerrors.Fatal {
		observability.LogFatal(d.logger, cerr.Kind.String(), err)
		return err
	}
	observability.LogPerEventError(d.logger, "RuleEvaluation", evalContext, err)
	return nil
}

// Package transport implements the external interfaces of spec.md
// §6: a Receiver/Submitter contract the core Processor and Driver loop
// see, concrete stdout/file/rabbitmq adapters behind it, and the
// fan-in merge and dead-letter handling the Driver loop uses to turn
// many receivers into one fair stream.
package transport

import (
	"context"
	"errors"
)

// ErrStreamFinished is returned by Receiver.ReceiveOne when the
// underlying stream has no more messages (e.g. EOF on a file).
var ErrStreamFinished = errors.New("transport: stream finished")

// Receiver yields one JSON payload at a time plus a one-shot ack
// closure, per spec.md §6. Ack must be called at most once and only
// after the payload has been durably handled.
type Receiver interface {
	Name() string
	ReceiveOne(ctx context.Context) (payload any, ack func(), err error)
	Close() error
}

// Submitter delivers a payload once to a named target. Transport-level
// retry, if any, is internal to the Submitter.
type Submitter interface {
	Name() string
	Submit(ctx context.Context, payload any) error
	Close() error
}

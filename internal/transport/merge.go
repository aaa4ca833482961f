package transport

import (
	"context"
	"log/slog"
	"sync"
)

// Message is one payload pulled off a Receiver, labeled with the
// receiver's name so the Processor can classify it against that
// source's event definitions.
type Message struct {
	Source  string
	Payload any
	Ack     func()
}

// Merger fans in multiple Receivers into a single channel the Driver
// loop drains, implementing spec.md §5's "parallelism lives only in
// independent transport adapters... the loop drains them with a fair
// merge." One goroutine per receiver blocks on ReceiveOne and forwards
// to a shared channel; the loop itself stays single-threaded, reading
// only from that channel.
//
// Grounded on pkg/flowgraph/event/bus.go's one-goroutine-per-
// subscription delivery loop, inverted from fan-out (bus -> many
// subscribers) to fan-in (many receivers -> one loop).
type Merger struct {
	logger   *slog.Logger
	messages chan Message
	done     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewMerger starts one pump goroutine per receiver. bufferSize bounds
// how many not-yet-processed messages may queue before a pump blocks.
// Once every pump has stopped, the message channel is closed and
// ReceiveBatch reports ErrStreamFinished.
func NewMerger(ctx context.Context, receivers []Receiver, bufferSize int, logger *slog.Logger) *Merger {
	ctx, cancel := context.WithCancel(ctx)
	m := &Merger{
		logger:   logger,
		messages: make(chan Message, bufferSize),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	for _, r := range receivers {
		m.wg.Add(1)
		go m.pump(ctx, r)
	}
	go func() {
		m.wg.Wait()
		close(m.messages)
	}()
	return m
}

func (m *Merger) pump(ctx context.Context, r Receiver) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		default:
		}

		payload, ack, err := r.ReceiveOne(ctx)
		if err != nil {
			if err == ErrStreamFinished || ctx.Err() != nil {
				return
			}
			if m.logger != nil {
				m.logger.Warn("transport: receive failed", slog.String("source", r.Name()), slog.String("error", err.Error()))
			}
			continue
		}

		select {
		case m.messages <- Message{Source: r.Name(), Payload: payload, Ack: ack}:
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}

// ReceiveBatch blocks for at least one message, then drains any
// additional messages already queued without blocking further,
// matching the Driver loop's "receive batch from all receivers" step.
func (m *Merger) ReceiveBatch(ctx context.Context) ([]Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case first, ok := <-m.messages:
		if !ok {
			return nil, ErrStreamFinished
		}
		batch := []Message{first}
		for {
			select {
			case next, ok := <-m.messages:
				if !ok {
					return batch, nil
				}
				batch = append(batch, next)
			default:
				return batch, nil
			}
		}
	}
}

// Close stops all pumps, cancelling the context they pass to
// ReceiveOne. It does not close the receivers themselves — callers own
// those and should Close each one separately.
func (m *Merger) Close() {
	close(m.done)
	m.cancel()
	m.wg.Wait()
}

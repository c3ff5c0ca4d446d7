// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"log/slog"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// Processor feeds one event at a time to a graph's FSM. It is always
// invoked from the dispatcher's worker goroutine, never concurrently.
type Processor interface {
	Process(ev events.Event)
}

// ErrorSource exposes the ops internal-error slot (spec section 4.4)
// so the dispatcher can turn a failed action into a synthesized Err
// event before the next queued command is processed (spec section
// 4.2, "Error containment").
type ErrorSource interface {
	InternalError() *ilcore.Err
	ResetInternalError()
}

// Dispatcher pops one command at a time from a Queue and feeds it to
// a Processor, checking ErrorSource after every event. It is the only
// goroutine that calls Processor.Process for a given graph.
type Dispatcher struct {
	queue     *Queue
	processor Processor
	errSrc    ErrorSource
	logger    *slog.Logger
	graphName string
}

// NewDispatcher builds a Dispatcher. logger may be nil.
func NewDispatcher(q *Queue, p Processor, errSrc ErrorSource, graphName string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{queue: q, processor: p, errSrc: errSrc, graphName: graphName, logger: logger}
}

// Enqueue is a convenience forward to the underlying Queue.
func (d *Dispatcher) Enqueue(ctx context.Context, ev events.Event) error {
	return d.queue.Enqueue(ctx, ev)
}

func (d *Dispatcher) logf(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, append([]any{"graph", d.graphName}, args...)...)
	}
}

// Run drains the queue until a kill_thread command is observed or ctx
// is cancelled. It never suspends anywhere except the queue's blocking
// dequeue (spec section 5).
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logf("dispatcher started")
	for {
		ev, err := d.queue.dequeue(ctx)
		if err != nil {
			d.logf("dispatcher stopping", "reason", err)
			return err
		}
		if ev.KillThread {
			d.logf("kill_thread observed, exiting dispatch loop")
			return nil
		}

		d.processor.Process(ev)

		if ierr := d.errSrc.InternalError(); ierr != nil && ierr.Code != ilcore.ErrorNone {
			d.logf("internal error after action, synthesizing Err event", "error", ierr)
			d.processor.Process(events.Event{
				Kind:    events.KindErr,
				ErrCode: ilcore.CodeOf(ierr),
				ErrMsg:  ierr.Error(),
			})
			d.errSrc.ResetInternalError()
		}
	}
}

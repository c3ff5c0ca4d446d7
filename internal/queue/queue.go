// SPDX-License-Identifier: MIT

// Package queue implements the per-graph command queue and dispatcher
// (spec section 4.2): a bounded MPSC queue drained by exactly one
// worker goroutine, which is the sole thread that ever touches the
// graph's FSM or issues OMX IL calls.
package queue

import (
	"context"
	"fmt"

	"github.com/tizonia-project/tizonia-go/internal/events"
)

// DefaultCapacity is the queue's default buffer size. External API
// calls and the OMX callback adapter both enqueue against this same
// buffered channel; arrival order within one producer is preserved,
// cross-producer order is not further constrained (spec section 5).
const DefaultCapacity = 256

// Queue is a bounded multi-producer single-consumer command queue.
type Queue struct {
	ch chan events.Event
}

// New creates a Queue with the given capacity (DefaultCapacity if 0).
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan events.Event, capacity)}
}

// Enqueue appends ev to the queue. It returns promptly: if the queue
// is full it blocks only until space frees up or ctx is cancelled,
// never performing any OMX IL call itself (external API entry points
// must never call into OMX IL directly).
func (q *Queue) Enqueue(ctx context.Context, ev events.Event) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", ev.Kind, ctx.Err())
	}
}

// dequeue blocks until an event is available or ctx is cancelled. This
// is the only suspension point of the worker goroutine (spec section 5).
func (q *Queue) dequeue(ctx context.Context) (events.Event, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return events.Event{}, ctx.Err()
	}
}

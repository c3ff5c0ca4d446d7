// SPDX-License-Identifier: MIT

package graphfsm

import (
	"context"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// act adapts a context-taking, error-returning ops call with no event
// payload into an fsm.Action.
func (d Deps) act(f func(ctx context.Context) error) fsm.Action {
	return func(ev events.Event) error { return f(d.ctx()) }
}

// actEv is act, but the ops call also consumes the triggering event.
func (d Deps) actEv(f func(ctx context.Context, ev events.Event) error) fsm.Action {
	return func(ev events.Event) error { return f(d.ctx(), ev) }
}

// run adapts a side-effecting, non-fallible ops call (the do_ack_*
// family, do_end_of_play) into an fsm.Action.
func (d Deps) run(f func()) fsm.Action {
	return func(events.Event) error { f(); return nil }
}

// runEv is run, but the call consumes the triggering event.
func (d Deps) runEv(f func(ev events.Event)) fsm.Action {
	return func(ev events.Event) error { f(ev); return nil }
}

// guard adapts a boolean ops/graph predicate into an fsm.Guard.
func guard(f func() bool) fsm.Guard {
	return func(events.Event) bool { return f() }
}

// guardEv is guard, but the predicate also consumes the triggering
// event (is_tunnel_altered, is_fatal_error on the error code carried
// by OmxErr).
func guardEv(f func(ev events.Event) bool) fsm.Guard {
	return f
}

// not negates a guard, used for the "otherwise" row of a guarded pair
// (spec section 4.5's Executing/OmxErr fatal-vs-otherwise rows).
func not(g fsm.Guard) fsm.Guard {
	return func(ev events.Event) bool { return !g(ev) }
}

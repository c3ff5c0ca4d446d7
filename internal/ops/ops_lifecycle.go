// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// transitionOrder returns handles in the order OMX_CommandStateSet
// should be issued for a transition toward target: sinks first for
// downward transitions (Executing/Pause -> Idle -> Loaded), sources
// first for upward transitions (Loaded -> Idle -> Executing).
func (o *Ops) transitionOrder(target ilcore.StateID) []ilcore.ComponentHandle {
	o.mu.Lock()
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	o.mu.Unlock()

	downward := target == ilcore.StateIdle || target == ilcore.StateLoaded
	if !downward {
		return handles
	}
	reversed := make([]ilcore.ComponentHandle, len(handles))
	for i, h := range handles {
		reversed[len(handles)-1-i] = h
	}
	return reversed
}

// issueStateSet drives every handle toward target via
// OMX_CommandStateSet, in the order transitionOrder prescribes, and
// records one expected transition per handle (spec section 4.4).
func (o *Ops) issueStateSet(ctx context.Context, target ilcore.StateID) error {
	order := o.transitionOrder(target)

	o.mu.Lock()
	for _, h := range order {
		o.expected[expectedKey{h, target}] = true
	}
	o.mu.Unlock()

	for _, h := range order {
		if err := o.core.SendCommand(ctx, h, ilcore.CommandStateSet, int(target)); err != nil {
			return o.fail(fmt.Errorf("state set %s on %s: %w", target, h, err))
		}
	}
	o.logf("state transition issued", "target", target.String(), "handles", len(order))
	return nil
}

// Loaded2Idle issues Loaded->Idle on every handle.
func (o *Ops) Loaded2Idle(ctx context.Context) error { return o.issueStateSet(ctx, ilcore.StateIdle) }

// Idle2Exe issues Idle->Executing on every handle.
func (o *Ops) Idle2Exe(ctx context.Context) error { return o.issueStateSet(ctx, ilcore.StateExecuting) }

// Exe2Pause issues Executing->Pause on every handle.
func (o *Ops) Exe2Pause(ctx context.Context) error { return o.issueStateSet(ctx, ilcore.StatePause) }

// Pause2Exe issues Pause->Executing on every handle.
func (o *Ops) Pause2Exe(ctx context.Context) error { return o.issueStateSet(ctx, ilcore.StateExecuting) }

// Exe2Idle issues Executing->Idle (or Pause->Idle, same call shape) on
// every handle.
func (o *Ops) Exe2Idle(ctx context.Context) error { return o.issueStateSet(ctx, ilcore.StateIdle) }

// Pause2Idle issues Pause->Idle on every handle.
func (o *Ops) Pause2Idle(ctx context.Context) error { return o.issueStateSet(ctx, ilcore.StateIdle) }

// Idle2Loaded issues Idle->Loaded on every handle.
func (o *Ops) Idle2Loaded(ctx context.Context) error { return o.issueStateSet(ctx, ilcore.StateLoaded) }

// SourceLoaded2Idle / SourceIdle2Exe act on just the source handle
// (handles[0]), used by the HTTP-server graph variant whose source
// (encoder) and sink (server) are driven through their state
// transitions independently (spec section 4.5, HTTP-server variant).
func (o *Ops) SourceLoaded2Idle(ctx context.Context) error { return o.issueStateSetSingle(ctx, 0, ilcore.StateIdle) }
func (o *Ops) SourceIdle2Exe(ctx context.Context) error    { return o.issueStateSetSingle(ctx, 0, ilcore.StateExecuting) }

// issueStateSetHandles drives exactly the given handles toward target,
// registering one expected transition per handle, used by the
// Updating-graph submachine to drive a newly loaded decoder tail
// without touching the already-Executing source (spec section 4.5).
func (o *Ops) issueStateSetHandles(ctx context.Context, handles []ilcore.ComponentHandle, target ilcore.StateID) error {
	o.mu.Lock()
	for _, h := range handles {
		o.expected[expectedKey{h, target}] = true
	}
	o.mu.Unlock()

	for _, h := range handles {
		if err := o.core.SendCommand(ctx, h, ilcore.CommandStateSet, int(target)); err != nil {
			return o.fail(fmt.Errorf("state set %s on %s: %w", target, h, err))
		}
	}
	return nil
}

func (o *Ops) issueStateSetSingle(ctx context.Context, idx int, target ilcore.StateID) error {
	o.mu.Lock()
	if idx < 0 || idx >= len(o.handles) {
		o.mu.Unlock()
		return o.fail(&ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "component index out of range"})
	}
	h := o.handles[idx]
	o.expected[expectedKey{h, target}] = true
	o.mu.Unlock()

	if err := o.core.SendCommand(ctx, h, ilcore.CommandStateSet, int(target)); err != nil {
		return o.fail(fmt.Errorf("state set %s on %s: %w", target, h, err))
	}
	return nil
}

// RecordDestination stores the lifecycle state the graph is ultimately
// headed toward (spec section 4.5's record_destination<...> action),
// used to disambiguate e.g. Exe2Idle reached because of Stop (dest =
// Idle) versus reached on the way to Unloaded (dest = Max/none).
func (o *Ops) RecordDestination(state ilcore.StateID) {
	o.mu.Lock()
	o.destination = state
	o.mu.Unlock()
}

// IsDestinationState implements the is_destination_state guard.
func (o *Ops) IsDestinationState(state ilcore.StateID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destination == state
}

// AckLoaded / AckExecd / AckPaused / AckUnpaused / AckStopped /
// AckUnloaded fire the matching Outbound callback (spec section 4.4's
// do_ack_* family); they never touch OMX IL themselves.
func (o *Ops) AckLoaded()   { o.outbound.OnLoaded() }
func (o *Ops) AckExecd()    { o.outbound.OnExecd() }
func (o *Ops) AckPaused()   { o.outbound.OnPaused() }
func (o *Ops) AckUnpaused() { o.outbound.OnResumed() }
func (o *Ops) AckStopped()  { o.outbound.OnStopped() }
func (o *Ops) AckUnloaded() { o.outbound.OnUnloaded() }

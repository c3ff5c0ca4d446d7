// SPDX-License-Identifier: MIT

package graphfsm

import (
	"context"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// Reconfiguring-tunnel-<i> submachine states (spec section 4.5). Named
// generically since the same table is instantiated once per tunnel
// index by buildReconfigureTunnel.
const (
	StateReconfDisabling fsm.State = "ReconfDisabling"
	StateReconfApplying  fsm.State = "ReconfApplying"
	StateReconfEnabling  fsm.State = "ReconfEnabling"
	StateReconfDone      fsm.State = "ReconfDone"
)

// buildReconfigureTunnel assembles the generic "Reconfiguring tunnel
// tid" submachine triggered by an OmxPortSettingsChanged on that
// tunnel (spec section S5): mute the renderer, disable both ends,
// reapply the renegotiated port definition, re-enable both ends,
// unmute, and exit emitting TunnelReconfigured. Skip and
// OmxPortSettings events are deferred for the duration and replayed
// once this submachine exits, so a renegotiation on one tunnel doesn't
// drop a skip request or another tunnel's settings change in flight.
func buildReconfigureTunnel(d Deps, tid int) *Submachine {
	rows := []fsm.Row{
		{From: StateReconfDisabling, Event: events.KindOmxPortDisabled, To: StateReconfApplying, Name: "disabled->apply",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckPortDisabled(ev.Handle, ev.Port)
				return d.Ops.IsTunnelDisablingComplete(tid)
			})},

		{From: StateReconfApplying, Event: fsm.AutoEvent, To: StateReconfEnabling, Name: "apply->enable",
			Actions: []fsm.Action{
				d.act(func(ctx context.Context) error { return d.Ops.ReconfigureTunnel(ctx, tid) }),
				d.act(func(ctx context.Context) error { return d.Ops.EnableTunnel(ctx, tid) }),
			}},

		{From: StateReconfEnabling, Event: events.KindOmxPortEnabled, To: StateReconfDone, Name: "enabled->done",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckPortEnabled(ev.Handle, ev.Port)
				return d.Ops.IsTunnelEnablingComplete(tid)
			}),
			Actions: []fsm.Action{d.act(func(ctx context.Context) error { return d.Ops.SetMute(ctx, false) })}},
	}

	m := fsm.New("reconfigure_tunnel", d.Logger, StateReconfDisabling, rows, nil)
	m.SetEntryActions(StateReconfDisabling,
		d.act(func(ctx context.Context) error { return d.Ops.SetMute(ctx, true) }),
		d.act(func(ctx context.Context) error { return d.Ops.DisableTunnel(ctx, tid) }))
	return &Submachine{
		Machine:    m,
		ExitEvents: map[fsm.State]events.Kind{StateReconfDone: events.KindTunnelReconfigured},
		Defer: map[events.Kind]bool{
			events.KindSkip:           true,
			events.KindOmxPortSettings: true,
		},
	}
}

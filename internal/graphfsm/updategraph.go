// SPDX-License-Identifier: MIT

package graphfsm

import (
	"context"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// Updating-graph submachine states (spec section 4.5, streaming /
// youtube / tunein variants): once Auto-detecting exits, load and wire
// up the codec/renderer tail while the source stays Executing.
const (
	StateUpdLoading  fsm.State = "UpdLoading"
	StateUpdEnabling fsm.State = "UpdEnabling"
	StateUpdExeTail  fsm.State = "UpdExeTail"
	StateUpdDone     fsm.State = "UpdDone"
)

// buildUpdatingGraph assembles the Updating-graph submachine, entered
// on AutoDetected. Not parameterized by tail-component count: ops'
// SetupTail/ExecuteTail drive whatever tail handles the factory
// registered beyond the source.
func buildUpdatingGraph(d Deps) *Submachine {
	tailTransComplete := guardEv(func(ev events.Event) bool {
		d.Ops.AckTrans(ev.Handle, ev.ReachedStat)
		return d.Ops.IsTransComplete(ev.Handle, ev.ReachedStat) && !d.Ops.IsFirstComponent(ev.Handle)
	})

	rows := []fsm.Row{
		{From: StateUpdLoading, Event: events.KindOmxTrans, To: StateUpdEnabling, Name: "tail_idle->enable_tunnel",
			Guard:   tailTransComplete,
			Actions: []fsm.Action{d.act(func(ctx context.Context) error { return d.Ops.EnableTunnel(ctx, probeTunnel) })}},

		{From: StateUpdEnabling, Event: events.KindOmxPortEnabled, To: StateUpdExeTail, Name: "tunnel_enabled->execute_tail",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckPortEnabled(ev.Handle, ev.Port)
				return d.Ops.IsTunnelEnablingComplete(probeTunnel)
			}),
			Actions: []fsm.Action{d.act(d.Ops.ExecuteTail)}},

		{From: StateUpdExeTail, Event: events.KindOmxTrans, To: StateUpdDone, Name: "tail_executing",
			Guard: tailTransComplete},
	}

	m := fsm.New("updating_graph", d.Logger, StateUpdLoading, rows, nil)
	m.SetEntryActions(StateUpdLoading, d.act(d.Ops.LoadDecoderTail), d.act(d.Ops.ConfigureDecoderTail), d.act(d.Ops.SetupTail))
	return &Submachine{
		Machine:    m,
		ExitEvents: map[fsm.State]events.Kind{StateUpdDone: events.KindGraphUpdated},
	}
}

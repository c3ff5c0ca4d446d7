// SPDX-License-Identifier: MIT

package graphfsm

import (
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// YouTube graph states hosting its two independently reconfigurable
// downstream tunnels (spec section 4.5: "additionally maintains two
// downstream tunnels and can reconfigure each independently").
const (
	StateReconfTunnel0 fsm.State = "ReconfTunnel0"
	StateReconfTunnel1 fsm.State = "ReconfTunnel1"
)

// BuildYoutube assembles the youtube graph variant: the generic
// streaming-service shape (auto_detecting, updating_graph, then
// steady-state playback through the ordinary Configuring submachine
// for track changes) plus two parallel reconfiguring_tunnel_<i>
// submachines, one per downstream tunnel, each entered from Executing
// when that tunnel's own OmxPortSettings fires.
func BuildYoutube(d Deps, hooks Hooks) *fsm.Machine {
	autoDetecting := buildAutoDetecting(d, hooks.NeedsDisabledEvt(), hooks.NeedsPortSettingsEvt())
	updatingGraph := buildUpdatingGraph(d)
	configuring := buildConfiguring(d, hooks.NeedsDisabledEvt())
	skipping := buildSkipping(d)
	reconfTunnel0 := buildReconfigureTunnel(d, 0)
	reconfTunnel1 := buildReconfigureTunnel(d, 1)

	tunnelAltered := func(tid int) fsm.Guard {
		return guardEv(func(ev events.Event) bool {
			return d.Ops.IsTunnelAltered(tid, ev.Handle, ev.Port, ev.Index)
		})
	}

	rows := []fsm.Row{
		{From: StateInited, Event: events.KindLoad, To: StateLoaded, Name: "load",
			Actions: []fsm.Action{d.act(d.Ops.Load), d.act(d.Ops.Setup), d.run(d.Ops.AckLoaded)}},

		{From: StateLoaded, Event: events.KindExecute, To: StateAutoDetecting, Name: "execute->auto_detecting",
			Guard:   guard(d.Ops.IsLastOpSucceeded),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.StoreConfig(ev.Config) })}},

		{From: exitOf(StateAutoDetecting), Event: events.KindAutoDetected, To: StateUpdatingGraph, Name: "auto_detected->updating_graph"},

		{From: exitOf(StateUpdatingGraph), Event: events.KindGraphUpdated, To: StateExecuting, Name: "graph_updated->executing",
			Actions: []fsm.Action{
				d.act(d.Ops.RetrieveMetadata),
				d.run(d.Ops.AckExecd),
			}},

		{From: exitOf(StateConfiguring), Event: events.KindConfigured, To: StateExecuting, Name: "configured->executing",
			Guard: not(guard(d.Ops.IsEndOfPlay)),
			Actions: []fsm.Action{
				d.act(d.Ops.RetrieveMetadata),
				d.run(d.Ops.AckExecd),
			}},
		{From: exitOf(StateConfiguring), Event: events.KindConfigured, To: StateUnloaded, Name: "configured_end_of_play->unloaded",
			Guard: guard(d.Ops.IsEndOfPlay),
			Actions: []fsm.Action{
				d.run(d.Ops.EndOfPlay),
				d.act(d.Ops.TearDownTunnels),
				d.act(d.Ops.DestroyGraph),
				d.run(d.Ops.AckUnloaded),
			}},

		{From: StateExecuting, Event: events.KindOmxPortSettings, To: StateReconfTunnel0, Name: "tunnel0_altered->reconfiguring",
			Guard: tunnelAltered(0)},
		{From: StateExecuting, Event: events.KindOmxPortSettings, To: StateReconfTunnel1, Name: "tunnel1_altered->reconfiguring",
			Guard: tunnelAltered(1)},
		{From: exitOf(StateReconfTunnel0), Event: events.KindTunnelReconfigured, To: StateExecuting, Name: "tunnel0_reconfigured->executing"},
		{From: exitOf(StateReconfTunnel1), Event: events.KindTunnelReconfigured, To: StateExecuting, Name: "tunnel1_reconfigured->executing"},
	}
	rows = append(rows, playbackRows(d)...)
	rows = append(rows, allOkRows(d)...)

	subs := map[fsm.State]*Submachine{
		StateAutoDetecting: autoDetecting,
		StateUpdatingGraph: updatingGraph,
		StateConfiguring:   configuring,
		StateSkipping:      skipping,
		StateReconfTunnel0: reconfTunnel0,
		StateReconfTunnel1: reconfTunnel1,
	}

	m := fsm.New("graph", d.Logger, StateInited, rows, subs)
	m.SetNoTransitionHandler(func(state fsm.State, ev events.Event) {
		if d.Logger != nil {
			d.Logger.Warn("no_transition", "state", string(state), "event", ev.Kind.String())
		}
	})
	_ = m.EnterInitial()
	return m
}

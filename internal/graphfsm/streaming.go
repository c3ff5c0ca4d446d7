// SPDX-License-Identifier: MIT

package graphfsm

import (
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// Auto-detecting/Updating-graph entry states for the streaming-service
// family (spec section 4.5: "prepends auto_detecting and updating_graph
// to the lifecycle so that the decoder and renderer tail are chosen
// after the source announces codec/channels/rate").
const (
	StateAutoDetecting fsm.State = "AutoDetecting"
	StateUpdatingGraph fsm.State = "UpdatingGraph"
)

// BuildStreamingService assembles the generic streaming-service graph
// variant's machine (dirble/soundcloud/tunein all share this shape;
// their differences live in the ops/probe layer's per-service metadata
// client, not in the transition table; youtube has its own table,
// BuildYoutube). hooks decides whether
// Auto-detecting waits on an extra port-disable acknowledgment before
// detecting, and whether it waits for a separate OmxPortSettings event
// alongside OmxFormatDetected.
func BuildStreamingService(d Deps, hooks Hooks) *fsm.Machine {
	autoDetecting := buildAutoDetecting(d, hooks.NeedsDisabledEvt(), hooks.NeedsPortSettingsEvt())
	updatingGraph := buildUpdatingGraph(d)
	configuring := buildConfiguring(d, hooks.NeedsDisabledEvt())
	skipping := buildSkipping(d)
	reconfTunnel := buildReconfigureTunnel(d, probeTunnel)

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

		// Once steady-state is reached, a later track change re-enters
		// the ordinary Configuring submachine: the tail is already
		// loaded and wired, only its parameters need reapplying.
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

		{From: StateExecuting, Event: events.KindOmxPortSettings, To: StateReconfTunnel0, Name: "tunnel_altered->reconfiguring",
			Guard: guardEv(func(ev events.Event) bool { return d.Ops.IsTunnelAltered(probeTunnel, ev.Handle, ev.Port, ev.Index) })},
		{From: exitOf(StateReconfTunnel0), Event: events.KindTunnelReconfigured, To: StateExecuting, Name: "tunnel_reconfigured->executing"},
	}
	rows = append(rows, playbackRows(d)...)
	rows = append(rows, allOkRows(d)...)

	subs := map[fsm.State]*Submachine{
		StateAutoDetecting: autoDetecting,
		StateUpdatingGraph: updatingGraph,
		StateConfiguring:   configuring,
		StateSkipping:      skipping,
		StateReconfTunnel0: reconfTunnel,
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

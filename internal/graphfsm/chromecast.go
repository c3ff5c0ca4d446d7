// SPDX-License-Identifier: MIT

package graphfsm

import (
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// Chromecast graph Configuring submachine states (spec section 4.5):
// no internal tunnel, a single source/sink component whose own ports
// are disabled directly rather than a tunnel pair's two ends.
const (
	StateChromeDisabling fsm.State = "ChromeDisabling"
	StateChromeConfig2Idle fsm.State = "ChromeConfig2Idle"
	StateChromeIdle2Exe fsm.State = "ChromeIdle2Exe"
)

// BuildChromecast assembles the chromecast graph variant's machine.
// Its shutdown path intentionally diverges from every other variant
// (spec section 4.5, supplemented from original_source/
// tizchromecastgraphfsm.hpp): Executing->Unloaded skips the separate
// Idle2Loaded acknowledgment wait and destroys the graph directly off
// the Idle state reached by Exe2Idle. This is documented original
// behavior, not a bug to normalize away.
func BuildChromecast(d Deps) *fsm.Machine {
	configuring := buildChromecastConfiguring(d)
	skipping := buildSkipping(d)

	rows := []fsm.Row{
		{From: StateInited, Event: events.KindLoad, To: StateLoaded, Name: "load",
			Actions: []fsm.Action{d.act(d.Ops.Load), d.act(d.Ops.Setup), d.run(d.Ops.AckLoaded)}},

		{From: StateLoaded, Event: events.KindExecute, To: StateConfiguring, Name: "execute->configuring",
			Guard:   guard(d.Ops.IsLastOpSucceeded),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.StoreConfig(ev.Config) })}},

		{From: exitOf(StateConfiguring), Event: events.KindConfigured, To: StateExecuting, Name: "configured->executing",
			Actions: []fsm.Action{d.run(d.Ops.AckExecd)}},
	}
	rows = append(rows, chromecastPlaybackRows(d)...)
	rows = append(rows, allOkRows(d)...)

	subs := map[fsm.State]*Submachine{
		StateConfiguring: configuring,
		StateSkipping:    skipping,
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

// chromecastPlaybackRows is playbackRows with the "reached Idle on the
// way to a stop" rows overridden to destroy the graph directly instead
// of waiting at Idle for a separate Unload.
func chromecastPlaybackRows(d Deps) []fsm.Row {
	base := playbackRows(d)
	out := make([]fsm.Row, 0, len(base))
	for _, r := range base {
		if r.Name == "ack_stopped" || r.Name == "ack_stopped_from_pause" {
			continue
		}
		out = append(out, r)
	}
	destroyOnStop := []fsm.Action{
		func(ev events.Event) error { d.Ops.AckTrans(ev.Handle, ev.ReachedStat); return nil },
		d.run(func() { d.Ops.RecordDestination(ilcore.StateInvalid) }),
		d.act(d.Ops.DestroyGraph),
		d.run(d.Ops.AckUnloaded),
	}
	out = append(out,
		fsm.Row{From: StateExe2Idle, Event: events.KindOmxTrans, To: StateUnloaded, Name: "ack_stopped",
			Guard: and(isTransComplete(d), destIs(d, ilcore.StateIdle)), Actions: destroyOnStop},
		fsm.Row{From: StatePause2Idle, Event: events.KindOmxTrans, To: StateUnloaded, Name: "ack_stopped_from_pause",
			Guard: and(isTransComplete(d), destIs(d, ilcore.StateIdle)), Actions: destroyOnStop},
	)
	return out
}

func buildChromecastConfiguring(d Deps) *Submachine {
	rows := []fsm.Row{
		{From: StateChromeDisabling, Event: events.KindOmxPortDisabled, To: StateChromeConfig2Idle, Name: "ports_disabled->config2idle",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckPortDisabled(ev.Handle, ev.Port)
				return d.Ops.IsComponentPortDisablingComplete()
			})},
		{From: StateChromeConfig2Idle, Event: fsm.AutoEvent, To: StateChromeIdle2Exe, Name: "config->idle2exe",
			Actions: []fsm.Action{d.act(d.Ops.Configure), d.act(d.Ops.Loaded2Idle)}},
	}

	m := fsm.New("chromecast_configuring", d.Logger, StateChromeDisabling, rows, nil)
	m.SetEntryActions(StateChromeDisabling, d.act(d.Ops.DisableComponentPorts))
	return &Submachine{
		Machine:    m,
		ExitEvents: map[fsm.State]events.Kind{StateChromeIdle2Exe: events.KindConfigured},
	}
}

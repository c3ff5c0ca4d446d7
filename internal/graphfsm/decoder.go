// SPDX-License-Identifier: MIT

package graphfsm

import (
	"context"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// Top-level states common to every variant (spec section 4.5).
const (
	StateInited      fsm.State = "Inited"
	StateLoaded      fsm.State = "Loaded"
	StateConfiguring fsm.State = "Configuring"
	StateExecuting   fsm.State = "Executing"
	StatePaused      fsm.State = "Paused"
	StateExe2Pause   fsm.State = "Exe2Pause"
	StatePause2Exe   fsm.State = "Pause2Exe"
	StatePause2Idle  fsm.State = "Pause2Idle"
	StateExe2Idle    fsm.State = "Exe2Idle"
	StateIdle        fsm.State = "Idle"
	StateIdle2Loaded fsm.State = "Idle2Loaded"
	StateSkipping    fsm.State = "Skipping"
	StateUnloaded    fsm.State = "Unloaded"

	// ResumeIdle2Exe is the transitional state driving a stopped graph
	// back Idle->Executing on a later Execute, mirroring the naming
	// of the documented Exe2Idle/Idle2Loaded pairs; the representative
	// table in spec section 4.5 does not name it explicitly, but Idle
	// otherwise has no way back to playback.
	StateResumeIdle2Exe fsm.State = "ResumeIdle2Exe"
)

// isTransComplete acks the triggering handle's transition and reports
// whether every handle expected to reach it has now done so. The ack
// happens as a guard side effect, not an action, so it runs once per
// incoming OmxTrans event regardless of whether this particular row
// ends up firing (mirrors buildConfiguring's ports_disabled->probe
// row) — with several handles in flight, only the last of them will
// ever see the guard return true, and every earlier one still needs
// to be acked.
func isTransComplete(d Deps) fsm.Guard {
	return guardEv(func(ev events.Event) bool {
		d.Ops.AckTrans(ev.Handle, ev.ReachedStat)
		return d.Ops.IsTransComplete(ev.Handle, ev.ReachedStat)
	})
}

func isFatalErr(d Deps) fsm.Guard {
	return guardEv(func(ev events.Event) bool { return d.Ops.IsFatalError(ev.ErrorCode()) })
}

func destIs(d Deps, s ilcore.StateID) fsm.Guard {
	return guard(func() bool { return d.Ops.IsDestinationState(s) })
}

func and(gs ...fsm.Guard) fsm.Guard {
	return func(ev events.Event) bool {
		for _, g := range gs {
			if g != nil && !g(ev) {
				return false
			}
		}
		return true
	}
}

// BuildDecoder assembles the generic decoder graph's top-level machine
// (spec section 4.5's representative transition table), with the
// Configuring and Skipping submachines wired in.
func BuildDecoder(d Deps, hooks Hooks) *fsm.Machine {
	configuring := buildConfiguring(d, hooks.NeedsDisabledEvt())
	skipping := buildSkipping(d)
	return buildLifecycle(d, configuring, skipping)
}

// buildLifecycle assembles the top-level transition table shared by
// the decoder and HTTP-server variants (spec section 4.5): those two
// differ only in how their Configuring submachine is built (what it
// configures, whether it waits on a port-disable ack), so the
// lifecycle table itself is shared rather than copied. The
// streaming-service, youtube and chromecast variants assemble their
// own tables and reuse only playbackRows and allOkRows.
func buildLifecycle(d Deps, configuring, skipping *Submachine) *fsm.Machine {
	reconfTunnel := buildReconfigureTunnel(d, probeTunnel)

	rows := []fsm.Row{
		{From: StateInited, Event: events.KindLoad, To: StateLoaded, Name: "load",
			Actions: []fsm.Action{d.act(d.Ops.Load), d.act(d.Ops.Setup), d.run(d.Ops.AckLoaded)}},

		{From: StateLoaded, Event: events.KindExecute, To: StateConfiguring, Name: "execute->configuring",
			Guard:   guard(d.Ops.IsLastOpSucceeded),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.StoreConfig(ev.Config) })}},

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

		// Spec section S5: a mid-playback OmxPortSettings on the probe
		// tunnel re-enters a reconfiguration submachine instead of
		// being dropped as an unrecognized Executing-state event.
		{From: StateExecuting, Event: events.KindOmxPortSettings, To: StateReconfTunnel0, Name: "tunnel_altered->reconfiguring",
			Guard: guardEv(func(ev events.Event) bool { return d.Ops.IsTunnelAltered(probeTunnel, ev.Handle, ev.Port, ev.Index) })},
		{From: exitOf(StateReconfTunnel0), Event: events.KindTunnelReconfigured, To: StateExecuting, Name: "tunnel_reconfigured->executing"},
	}
	rows = append(rows, playbackRows(d)...)
	rows = append(rows, allOkRows(d)...)

	subs := map[fsm.State]*Submachine{
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

// playbackRows is the Executing/Paused/Skipping/teardown portion of
// the top-level table shared by every variant, independent of how each
// variant reaches StateExecuting the first time.
func playbackRows(d Deps) []fsm.Row {
	return []fsm.Row{
		{From: StateExecuting, Event: events.KindSkip, To: StateSkipping, Name: "skip",
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.StoreSkip(ev.SkipOffset) })}},
		{From: StateExecuting, Event: events.KindPause, To: StateExe2Pause, Name: "pause",
			Actions: []fsm.Action{d.act(d.Ops.Exe2Pause)}},
		{From: StateExecuting, Event: events.KindStop, To: StateExe2Idle, Name: "stop",
			Actions: []fsm.Action{d.run(func() { d.Ops.RecordDestination(ilcore.StateIdle) }), d.act(d.Ops.Exe2Idle)}},
		{From: StateExecuting, Event: events.KindUnload, To: StateExe2Idle, Name: "unload",
			Actions: []fsm.Action{d.act(d.Ops.Exe2Idle)}},
		{From: StateExecuting, Event: events.KindOmxErr, To: StateExe2Idle, Name: "fatal_err->exe2idle",
			Guard:   isFatalErr(d),
			Actions: []fsm.Action{d.runEv(recordFatal(d)), d.act(d.Ops.Exe2Idle)}},
		{From: StateExecuting, Event: events.KindOmxErr, To: StateSkipping, Name: "nonfatal_err->skipping"},
		{From: StateExecuting, Event: events.KindOmxEos, To: StateSkipping, Name: "eos->skipping",
			Guard: guardEv(func(ev events.Event) bool { return d.Ops.IsLastEOS(ev.Handle) })},
		{From: StateExecuting, Event: events.KindVolume, To: StateExecuting, Name: "volume",
			Actions: []fsm.Action{d.actEv(func(ctx context.Context, ev events.Event) error { return d.Ops.Volume(ctx, ev.VolumeAbs) })}},
		{From: StateExecuting, Event: events.KindVolumeStep, To: StateExecuting, Name: "volume_step",
			Actions: []fsm.Action{d.actEv(func(ctx context.Context, ev events.Event) error { return d.Ops.VolumeStep(ctx, ev.VolumeDelta) })}},
		{From: StateExecuting, Event: events.KindMute, To: StateExecuting, Name: "mute",
			Actions: []fsm.Action{d.act(d.Ops.Mute)}},
		{From: StateExecuting, Event: events.KindSeek, To: StateExecuting, Name: "seek",
			Actions: []fsm.Action{d.actEv(func(ctx context.Context, ev events.Event) error { return d.Ops.Seek(ctx, ev.SeekPos) })}},
		{From: StateExecuting, Event: events.KindPosition, To: StateExecuting, Name: "position",
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.StorePosition(ev.PositionVal) })}},

		{From: StateExe2Pause, Event: events.KindOmxTrans, To: StatePaused, Name: "ack_paused",
			Guard:   isTransComplete(d),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.AckTrans(ev.Handle, ev.ReachedStat) }), d.run(d.Ops.AckPaused)}},

		{From: StatePaused, Event: events.KindExecute, To: StatePause2Exe, Name: "pause2exe",
			Actions: []fsm.Action{d.act(d.Ops.Pause2Exe)}},
		{From: StatePaused, Event: events.KindPause, To: StatePause2Exe, Name: "unpause",
			Actions: []fsm.Action{d.act(d.Ops.Pause2Exe)}},
		{From: StatePaused, Event: events.KindStop, To: StatePause2Idle, Name: "stop_from_pause",
			Actions: []fsm.Action{d.run(func() { d.Ops.RecordDestination(ilcore.StateIdle) }), d.act(d.Ops.Pause2Idle)}},

		{From: StatePause2Exe, Event: events.KindOmxTrans, To: StateExecuting, Name: "ack_unpaused",
			Guard:   isTransComplete(d),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.AckTrans(ev.Handle, ev.ReachedStat) }), d.run(d.Ops.AckUnpaused)}},

		{From: StatePause2Idle, Event: events.KindOmxTrans, To: StateIdle, Name: "ack_stopped_from_pause",
			Guard: and(isTransComplete(d), destIs(d, ilcore.StateIdle)),
			Actions: []fsm.Action{
				d.runEv(func(ev events.Event) { d.Ops.AckTrans(ev.Handle, ev.ReachedStat) }),
				d.run(func() { d.Ops.RecordDestination(ilcore.StateInvalid) }),
				d.run(d.Ops.AckStopped),
			}},

		{From: StateExe2Idle, Event: events.KindOmxTrans, To: StateIdle2Loaded, Name: "idle2loaded",
			Guard:   and(isTransComplete(d), not(destIs(d, ilcore.StateIdle))),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.AckTrans(ev.Handle, ev.ReachedStat) }), d.act(d.Ops.Idle2Loaded)}},
		{From: StateExe2Idle, Event: events.KindOmxTrans, To: StateIdle, Name: "ack_stopped",
			Guard: and(isTransComplete(d), destIs(d, ilcore.StateIdle)),
			Actions: []fsm.Action{
				d.runEv(func(ev events.Event) { d.Ops.AckTrans(ev.Handle, ev.ReachedStat) }),
				d.run(func() { d.Ops.RecordDestination(ilcore.StateInvalid) }),
				d.run(d.Ops.AckStopped),
			}},

		{From: StateIdle2Loaded, Event: events.KindOmxTrans, To: StateUnloaded, Name: "idle2loaded_complete->unloaded",
			Guard:   isTransComplete(d),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.AckTrans(ev.Handle, ev.ReachedStat) }), d.act(d.Ops.TearDownTunnels), d.act(d.Ops.DestroyGraph), d.run(d.Ops.AckUnloaded)}},

		{From: StateIdle, Event: events.KindExecute, To: StateResumeIdle2Exe, Name: "resume",
			Actions: []fsm.Action{d.act(d.Ops.Idle2Exe)}},
		{From: StateIdle, Event: events.KindUnload, To: StateIdle2Loaded, Name: "unload_from_idle",
			Actions: []fsm.Action{d.act(d.Ops.Idle2Loaded)}},
		{From: StateResumeIdle2Exe, Event: events.KindOmxTrans, To: StateExecuting, Name: "resumed",
			Guard:   isTransComplete(d),
			Actions: []fsm.Action{d.runEv(func(ev events.Event) { d.Ops.AckTrans(ev.Handle, ev.ReachedStat) }), d.run(d.Ops.AckExecd)}},

		{From: exitOf(StateSkipping), Event: events.KindSkipped, To: StateUnloaded, Name: "skipped_end_of_play->unloaded",
			Guard: guard(d.Ops.IsEndOfPlay),
			Actions: []fsm.Action{
				d.run(d.Ops.EndOfPlay),
				d.act(d.Ops.TearDownTunnels),
				d.act(d.Ops.DestroyGraph),
				d.run(d.Ops.AckUnloaded),
			}},
		{From: exitOf(StateSkipping), Event: events.KindSkipped, To: StateConfiguring, Name: "skipped->configuring",
			Guard: not(guard(d.Ops.IsEndOfPlay))},
	}
}

// allOkRows is the orthogonal error-catching region shared by every
// variant (spec section 4.5's AllOk region).
func allOkRows(d Deps) []fsm.Row {
	return []fsm.Row{
		{From: fsm.AllOk, Event: events.KindErr, To: StateUnloaded, Name: "err->unloaded",
			Actions: []fsm.Action{d.run(d.Ops.DoError)}},
		{From: fsm.AllOk, Event: events.KindOmxErr, To: StateUnloaded, Name: "fatal_err->unloaded",
			Guard: isFatalErr(d),
			Actions: []fsm.Action{
				d.runEv(recordFatal(d)),
				d.run(d.Ops.DoError),
				d.act(d.Ops.DestroyGraph),
			}},
	}
}

// exitOf spells a parent state's exit pseudo-state name (spec section
// 4.5's "Configuring.exit" notation).
func exitOf(s fsm.State) fsm.State { return fsm.State(string(s) + ".exit") }

func recordFatal(d Deps) func(ev events.Event) {
	return func(ev events.Event) {
		d.Ops.RecordFatalError(ev.Handle, ev.ErrorCode(), ev.Port)
	}
}

// SPDX-License-Identifier: MIT

package graphfsm

import (
	"context"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// Configuring submachine states (spec section 4.5).
const (
	StateDisablingPorts fsm.State = "DisablingPorts"
	StateProbing        fsm.State = "Probing"
	StateConfigExit     fsm.State = "ConfigExit"
	StateConfig2Idle    fsm.State = "Config2Idle"
	StateIdle2Exe       fsm.State = "Idle2Exe"
)

// probeTunnel is the tunnel whose ports are disabled while probing the
// next playlist entry (between the source and the first downstream
// component), matching the generic decoder's single-tunnel case.
const probeTunnel = 0

// Submachine is a convenience alias so variant files don't need to
// import the fsm package just to spell out fsm.Submachine.
type Submachine = fsm.Submachine

// buildConfiguring assembles the Configuring submachine (spec section
// 4.5): optionally wait for a port-disable ack before probing, retry
// the playlist on a bad probe, exit immediately on end-of-play, and
// otherwise drive Loaded->Idle->Executing once a probe succeeds. Its
// exit states are ConfigExit (end-of-play) and Idle2Exe (configured),
// both synthesizing Configured to the parent; the parent's own
// is_end_of_play guard on the Configured row tells the two apart.
func buildConfiguring(d Deps, needsDisabledEvt bool) *Submachine {
	initial := StateProbing
	if needsDisabledEvt {
		initial = StateDisablingPorts
	}

	rows := []fsm.Row{
		// DisableTunnel disabled both ends of probeTunnel, so two
		// OmxPortDisabled acks arrive; only the second (both expected
		// acks cleared) actually advances to Probing.
		{From: StateDisablingPorts, Event: events.KindOmxPortDisabled, To: StateProbing, Name: "ports_disabled->probe",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckPortDisabled(ev.Handle, ev.Port)
				return d.Ops.IsTunnelDisablingComplete(probeTunnel)
			})},

		{From: StateProbing, Event: fsm.AutoEvent, To: StateConfigExit, Name: "end_of_play->exit",
			Guard: guard(d.Ops.IsEndOfPlay)},
		{From: StateProbing, Event: fsm.AutoEvent, To: StateConfig2Idle, Name: "good_probe->loaded2idle",
			Guard:   guard(d.Ops.IsProbingResultOK),
			Actions: []fsm.Action{d.act(d.Ops.Configure), d.act(d.Ops.Loaded2Idle)}},
		{From: StateProbing, Event: fsm.AutoEvent, To: StateProbing, Name: "bad_probe->retry",
			Actions: []fsm.Action{
				d.run(d.Ops.ResetInternalError),
				d.act(d.Ops.Skip),
			}},

		{From: StateConfig2Idle, Event: events.KindOmxTrans, To: StateIdle2Exe, Name: "idle2exe",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckTrans(ev.Handle, ev.ReachedStat)
				return d.Ops.IsTransComplete(ev.Handle, ev.ReachedStat)
			}),
			Actions: []fsm.Action{d.act(d.Ops.Idle2Exe)}},
	}

	m := fsm.New("configuring", d.Logger, initial, rows, nil)
	m.SetEntryActions(StateDisablingPorts, d.act(func(ctx context.Context) error {
		return d.Ops.DisableTunnel(ctx, probeTunnel)
	}))
	m.SetEntryActions(StateProbing, d.act(d.Ops.Probe))
	return &Submachine{
		Machine: m,
		ExitEvents: map[fsm.State]events.Kind{
			StateConfigExit: events.KindConfigured,
			StateIdle2Exe:   events.KindConfigured,
		},
	}
}

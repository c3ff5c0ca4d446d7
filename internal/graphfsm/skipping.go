// SPDX-License-Identifier: MIT

package graphfsm

import (
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// Skipping submachine states (spec section 4.5).
const (
	StateSkipExe2Idle  fsm.State = "SkipExe2Idle"
	StateSkipIdle2Load fsm.State = "SkipIdle2Loaded"
	StateSkipDone      fsm.State = "SkipDone"
)

// buildSkipping assembles the Skipping submachine: drive every handle
// Executing->Idle->Loaded, advance the playlist cursor, and exit
// emitting Skipped. Whether the advanced cursor ran past the end of
// the playlist is decided by the parent's is_end_of_play guard on the
// Skipped row, exactly mirroring Configuring's exit split.
func buildSkipping(d Deps) *Submachine {
	rows := []fsm.Row{
		{From: StateSkipExe2Idle, Event: events.KindOmxTrans, To: StateSkipIdle2Load, Name: "idle2loaded",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckTrans(ev.Handle, ev.ReachedStat)
				return d.Ops.IsTransComplete(ev.Handle, ev.ReachedStat)
			}),
			Actions: []fsm.Action{d.act(d.Ops.Idle2Loaded)}},
		{From: StateSkipIdle2Load, Event: events.KindOmxTrans, To: StateSkipDone, Name: "skip",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckTrans(ev.Handle, ev.ReachedStat)
				return d.Ops.IsTransComplete(ev.Handle, ev.ReachedStat)
			}),
			Actions: []fsm.Action{d.act(d.Ops.Skip)}},
	}

	m := fsm.New("skipping", d.Logger, StateSkipExe2Idle, rows, nil)
	m.SetEntryActions(StateSkipExe2Idle, d.act(d.Ops.Exe2Idle))
	return &Submachine{
		Machine:    m,
		ExitEvents: map[fsm.State]events.Kind{StateSkipDone: events.KindSkipped},
	}
}

// SPDX-License-Identifier: MIT

package graphfsm

import (
	"context"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// Auto-detecting submachine states (spec section 4.5, streaming /
// youtube / tunein variants): enable auto-detection on the source,
// drive it Loaded->Executing, then wait for OmxPortSettings and
// OmxFormatDetected in either order before exiting.
const (
	StateAutoDisabling  fsm.State = "AutoDisabling"
	StateAutoConfig2Idle fsm.State = "AutoConfig2Idle"
	StateAutoIdle2Exe   fsm.State = "AutoIdle2Exe"
	StateAutoWaitFirst  fsm.State = "AutoWaitFirst"
	StateAutoGotSettings fsm.State = "AutoGotSettings"
	StateAutoGotFormat  fsm.State = "AutoGotFormat"
	StateAutoDone       fsm.State = "AutoDone"
)

// buildAutoDetecting assembles the Auto-detecting submachine.
// needsDisabledEvt mirrors Configuring's own trait: some sources need
// an explicit port-disable acknowledgment before auto-detection
// starts. needsPortSettingsEvt reports whether the source component
// actually raises a separate OmxPortSettings alongside
// OmxFormatDetected; sources that don't (Hooks.NeedsPortSettingsEvt
// false) exit as soon as OmxFormatDetected arrives instead of waiting
// for a settings event that will never come.
func buildAutoDetecting(d Deps, needsDisabledEvt, needsPortSettingsEvt bool) *Submachine {
	initial := StateAutoConfig2Idle
	if needsDisabledEvt {
		initial = StateAutoDisabling
	}

	sourceTransComplete := guardEv(func(ev events.Event) bool {
		d.Ops.AckTrans(ev.Handle, ev.ReachedStat)
		return d.Ops.IsTransComplete(ev.Handle, ev.ReachedStat) && d.Ops.IsFirstComponent(ev.Handle)
	})
	formatNotDetected := guardEv(func(ev events.Event) bool { return d.Ops.IsFormatNotDetected(ev.ErrorCode()) })

	retryRow := func(from fsm.State) fsm.Row {
		return fsm.Row{From: from, Event: events.KindOmxErr, To: StateAutoDisabling, Name: "format_not_detected->retry",
			Guard:   formatNotDetected,
			Actions: []fsm.Action{d.run(d.Ops.ResetInternalError), d.act(d.Ops.Skip)}}
	}

	rows := []fsm.Row{
		{From: StateAutoDisabling, Event: events.KindOmxPortDisabled, To: StateAutoConfig2Idle, Name: "ports_disabled->config2idle",
			Guard: guardEv(func(ev events.Event) bool {
				d.Ops.AckPortDisabled(ev.Handle, ev.Port)
				return d.Ops.IsTunnelDisablingComplete(probeTunnel)
			})},

		{From: StateAutoConfig2Idle, Event: fsm.AutoEvent, To: StateAutoIdle2Exe, Name: "enable->idle2exe",
			Actions: []fsm.Action{d.act(d.Ops.EnableAutoDetect), d.act(d.Ops.SourceLoaded2Idle), d.act(d.Ops.SourceIdle2Exe)}},

		{From: StateAutoIdle2Exe, Event: events.KindOmxTrans, To: StateAutoWaitFirst, Name: "source_executing",
			Guard: sourceTransComplete},

		{From: StateAutoWaitFirst, Event: events.KindOmxPortSettings, To: StateAutoGotSettings, Name: "got_settings_first"},
		retryRow(StateAutoWaitFirst),

		{From: StateAutoGotSettings, Event: events.KindOmxFormatDetected, To: StateAutoDone, Name: "got_format_second"},
		retryRow(StateAutoGotSettings),
	}

	if needsPortSettingsEvt {
		rows = append(rows,
			fsm.Row{From: StateAutoWaitFirst, Event: events.KindOmxFormatDetected, To: StateAutoGotFormat, Name: "got_format_first"},
			fsm.Row{From: StateAutoGotFormat, Event: events.KindOmxPortSettings, To: StateAutoDone, Name: "got_settings_second"},
			retryRow(StateAutoGotFormat),
		)
	} else {
		rows = append(rows,
			fsm.Row{From: StateAutoWaitFirst, Event: events.KindOmxFormatDetected, To: StateAutoDone, Name: "got_format_only"},
		)
	}

	m := fsm.New("auto_detecting", d.Logger, initial, rows, nil)
	m.SetEntryActions(StateAutoDisabling, d.act(func(ctx context.Context) error { return d.Ops.DisableTunnel(ctx, probeTunnel) }))
	return &Submachine{
		Machine:    m,
		ExitEvents: map[fsm.State]events.Kind{StateAutoDone: events.KindAutoDetected},
	}
}

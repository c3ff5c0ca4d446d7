// SPDX-License-Identifier: MIT

package graphfsm

import (
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
)

// HTTP-server graph Configuring submachine states (spec section 4.5):
// the source (encoder/capturer) is driven Loaded->Idle->Executing on
// its own, independently of the server/sink component, which is
// configured once per playlist entry but otherwise stays Executing
// across entries (an HTTP radio stream doesn't stop serving clients
// between tracks).
const (
	StateHTTPProbing    fsm.State = "HTTPProbing"
	StateHTTPConfigExit fsm.State = "HTTPConfigExit"
	StateHTTPWaitIdle   fsm.State = "HTTPWaitIdle"
	StateHTTPWaitExe    fsm.State = "HTTPWaitExe"
	StateHTTPSourceExe  fsm.State = "HTTPSourceExe"
)

// BuildHTTPServer assembles the HTTP-server graph variant's machine:
// the shared lifecycle table with an HTTP-server-specific Configuring
// submachine.
func BuildHTTPServer(d Deps) *fsm.Machine {
	configuring := buildHTTPServerConfiguring(d)
	skipping := buildSkipping(d)
	return buildLifecycle(d, configuring, skipping)
}

func buildHTTPServerConfiguring(d Deps) *Submachine {
	sourceTransComplete := guardEv(func(ev events.Event) bool {
		d.Ops.AckTrans(ev.Handle, ev.ReachedStat)
		return d.Ops.IsTransComplete(ev.Handle, ev.ReachedStat) && d.Ops.IsFirstComponent(ev.Handle)
	})

	rows := []fsm.Row{
		{From: StateHTTPProbing, Event: fsm.AutoEvent, To: StateHTTPConfigExit, Name: "end_of_play->exit",
			Guard: guard(d.Ops.IsEndOfPlay)},
		{From: StateHTTPProbing, Event: fsm.AutoEvent, To: StateHTTPWaitIdle, Name: "good_probe->source_loaded2idle",
			Guard: guard(d.Ops.IsProbingResultOK),
			Actions: []fsm.Action{
				d.act(d.Ops.ConfigureServer),
				d.act(d.Ops.ConfigureStation),
				d.act(d.Ops.ConfigureStream),
				d.act(d.Ops.SourceLoaded2Idle),
			}},
		{From: StateHTTPProbing, Event: fsm.AutoEvent, To: StateHTTPProbing, Name: "bad_probe->retry",
			Actions: []fsm.Action{d.run(d.Ops.ResetInternalError), d.act(d.Ops.Skip)}},

		{From: StateHTTPWaitIdle, Event: events.KindOmxTrans, To: StateHTTPWaitExe, Name: "source_omx_loaded2idle",
			Guard:   sourceTransComplete,
			Actions: []fsm.Action{d.act(d.Ops.SourceIdle2Exe)}},
		{From: StateHTTPWaitExe, Event: events.KindOmxTrans, To: StateHTTPSourceExe, Name: "source_omx_idle2exe",
			Guard: sourceTransComplete},
	}

	m := fsm.New("http_server_configuring", d.Logger, StateHTTPProbing, rows, nil)
	m.SetEntryActions(StateHTTPProbing, d.act(d.Ops.Probe))
	return &Submachine{
		Machine: m,
		ExitEvents: map[fsm.State]events.Kind{
			StateHTTPConfigExit: events.KindConfigured,
			StateHTTPSourceExe:  events.KindConfigured,
		},
	}
}

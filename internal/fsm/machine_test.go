package fsm

import (
	"errors"
	"testing"

	"github.com/tizonia-project/tizonia-go/internal/events"
)

func TestDispatchSimpleTransition(t *testing.T) {
	var ran []string
	rows := []Row{
		{From: "Loaded", Event: events.KindExecute, To: "Executing", Name: "loaded->executing",
			Actions: []Action{func(events.Event) error { ran = append(ran, "load_exec"); return nil }}},
	}
	m := New("test", nil, "Loaded", rows, nil)

	if err := m.Dispatch(events.Event{Kind: events.KindExecute}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if got := m.State(); got != "Executing" {
		t.Fatalf("state = %q, want Executing", got)
	}
	if len(ran) != 1 || ran[0] != "load_exec" {
		t.Fatalf("actions ran = %v", ran)
	}
}

func TestDispatchGuardOrdersCandidateRows(t *testing.T) {
	fatal := false
	rows := []Row{
		{From: "Executing", Event: events.KindOmxErr, Guard: func(events.Event) bool { return fatal }, To: "Exe2Idle", Name: "fatal"},
		{From: "Executing", Event: events.KindOmxErr, To: "Skipping", Name: "nonfatal"},
	}
	m := New("test", nil, "Executing", rows, nil)

	if err := m.Dispatch(events.Event{Kind: events.KindOmxErr}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := m.State(); got != "Skipping" {
		t.Fatalf("state = %q, want Skipping (non-fatal row)", got)
	}

	fatal = true
	m.Reset("Executing")
	if err := m.Dispatch(events.Event{Kind: events.KindOmxErr}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := m.State(); got != "Exe2Idle" {
		t.Fatalf("state = %q, want Exe2Idle (fatal row)", got)
	}
}

func TestNoTransitionTrapDoesNotCrash(t *testing.T) {
	var trapped []string
	rows := []Row{
		{From: "Loaded", Event: events.KindExecute, To: "Executing"},
	}
	m := New("test", nil, "Loaded", rows, nil)
	m.SetNoTransitionHandler(func(state State, ev events.Event) {
		trapped = append(trapped, string(state)+"/"+ev.Kind.String())
	})

	if err := m.Dispatch(events.Event{Kind: events.KindPause}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := m.State(); got != "Loaded" {
		t.Fatalf("state changed on unrecognized event: %q", got)
	}
	if len(trapped) != 1 || trapped[0] != "Loaded/Pause" {
		t.Fatalf("trap not invoked as expected: %v", trapped)
	}
}

func TestSubmachineExitSynthesizesParentEvent(t *testing.T) {
	var order []string
	child := New("configuring", nil, "Probing", []Row{
		{From: "Probing", Event: events.KindTimer, To: "Config2Idle",
			Actions: []Action{func(events.Event) error { order = append(order, "configure"); return nil }}},
	}, nil)

	sub := &Submachine{
		Machine:    child,
		ExitEvents: map[State]events.Kind{"Config2Idle": events.KindConfigured},
	}

	rows := []Row{
		{From: "Configuring.exit", Event: events.KindConfigured, To: "Executing",
			Actions: []Action{func(events.Event) error { order = append(order, "ack_execd"); return nil }}},
	}
	m := New("top", nil, "Configuring", rows, map[State]*Submachine{"Configuring": sub})

	if err := m.Dispatch(events.Event{Kind: events.KindTimer}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := m.State(); got != "Executing" {
		t.Fatalf("state = %q, want Executing", got)
	}
	want := []string{"configure", "ack_execd"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("action order = %v, want %v", order, want)
	}
}

func TestAllOkCatchesErrorWhileSubmachineActive(t *testing.T) {
	child := New("configuring", nil, "Probing", []Row{
		{From: "Probing", Event: events.KindTimer, To: "Probing"},
	}, nil)
	sub := &Submachine{Machine: child, ExitEvents: map[State]events.Kind{"Config2Idle": events.KindConfigured}}

	var destroyed bool
	rows := []Row{
		{From: AllOk, Event: events.KindOmxErr, To: "Unloaded",
			Actions: []Action{func(events.Event) error { destroyed = true; return nil }}},
	}
	m := New("top", nil, "Configuring", rows, map[State]*Submachine{"Configuring": sub})

	if err := m.Dispatch(events.Event{Kind: events.KindOmxErr}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !destroyed {
		t.Fatal("AllOk row did not fire while submachine was active")
	}
	if got := m.State(); got != "Unloaded" {
		t.Fatalf("state = %q, want Unloaded", got)
	}
}

func TestDeferredEventsReplayOnSubmachineExit(t *testing.T) {
	child := New("reconfig", nil, "Disabling", []Row{
		{From: "Disabling", Event: events.KindOmxPortDisabled, To: "Done"},
	}, nil)
	sub := &Submachine{
		Machine:    child,
		ExitEvents: map[State]events.Kind{"Done": events.KindTunnelReconfigured},
		Defer:      map[events.Kind]bool{events.KindSkip: true},
	}

	var skipped bool
	rows := []Row{
		{From: "Executing", Event: events.KindOmxPortSettings, To: "Reconfiguring"},
		{From: "Reconfiguring.exit", Event: events.KindTunnelReconfigured, To: "Executing"},
		{From: "Executing", Event: events.KindSkip, To: "Skipping",
			Actions: []Action{func(events.Event) error { skipped = true; return nil }}},
	}
	m := New("top", nil, "Executing", rows, map[State]*Submachine{"Reconfiguring": sub})

	if err := m.Dispatch(events.Event{Kind: events.KindOmxPortSettings}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := m.State(); got != "Reconfiguring" {
		t.Fatalf("state = %q, want Reconfiguring", got)
	}

	if err := m.Dispatch(events.Event{Kind: events.KindSkip}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if skipped {
		t.Fatal("Skip ran immediately instead of being deferred")
	}
	if got := m.State(); got != "Reconfiguring" {
		t.Fatalf("state moved while deferring: %q", got)
	}

	if err := m.Dispatch(events.Event{Kind: events.KindOmxPortDisabled}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !skipped {
		t.Fatal("deferred Skip was not replayed on submachine exit")
	}
	if got := m.State(); got != "Skipping" {
		t.Fatalf("state = %q, want Skipping after replay", got)
	}
}

func TestActionErrorDoesNotBlockTransition(t *testing.T) {
	rows := []Row{
		{From: "Loaded", Event: events.KindExecute, To: "Executing",
			Actions: []Action{func(events.Event) error { return errors.New("boom") }}},
	}
	m := New("test", nil, "Loaded", rows, nil)
	if err := m.Dispatch(events.Event{Kind: events.KindExecute}); err != nil {
		t.Fatalf("Dispatch returned error, want nil (errors recorded by ops, not propagated): %v", err)
	}
	if got := m.State(); got != "Executing" {
		t.Fatalf("state = %q, want Executing", got)
	}
}

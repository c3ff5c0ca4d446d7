// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"testing"

	"github.com/tizonia-project/tizonia-go/internal/callback"
	"github.com/tizonia-project/tizonia-go/internal/component"
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/probe"
)

type dummyEnqueuer struct{}

func (dummyEnqueuer) Enqueue(context.Context, events.Event) error { return nil }

type stubOutbound struct {
	loaded, execd, paused, resumed, stopped, unloaded int
}

func (s *stubOutbound) OnLoaded()                            { s.loaded++ }
func (s *stubOutbound) OnExecd()                             { s.execd++ }
func (s *stubOutbound) OnPaused()                            { s.paused++ }
func (s *stubOutbound) OnResumed()                           { s.resumed++ }
func (s *stubOutbound) OnStopped()                           { s.stopped++ }
func (s *stubOutbound) OnUnloaded()                          { s.unloaded++ }
func (s *stubOutbound) OnMetadata(ilcore.MetadataItem, bool) {}
func (s *stubOutbound) OnVolumeAcked(int)                    {}
func (s *stubOutbound) OnError(ilcore.ErrorCode, string)     {}

func newTestOps(t *testing.T) (*Ops, *component.FakeCore, *stubOutbound) {
	t.Helper()
	core := component.NewFakeCore(false)
	out := &stubOutbound{}
	specs := []ComponentSpec{
		{Role: "file_reader.binary", Name: "reader"},
		{Role: "audio_decoder.mp3", Name: "decoder"},
		{Role: "audio_renderer.pcm", Name: "renderer"},
	}
	tunnels := []TunnelSpec{
		{OutComponent: 0, OutPort: 1, InComponent: 1, InPort: 0},
		{OutComponent: 1, OutPort: 1, InComponent: 2, InPort: 0},
	}
	o := New(core, callback.New(context.Background(), dummyEnqueuer{}), probe.StaticProber{Result: probe.Result{
		Coding: ilcore.CodingMP3, SampleRate: 44100, Channels: 2,
	}}, out, "ops-test", nil, specs, tunnels)
	return o, core, out
}

func TestLoadRegistersHandlesInOrder(t *testing.T) {
	o, _, _ := newTestOps(t)
	if err := o.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	handles := o.Handles()
	if len(handles) != 3 {
		t.Fatalf("got %d handles, want 3", len(handles))
	}
	if !o.IsFirstComponent(handles[0]) {
		t.Error("first handle not reported as first component")
	}
	if !o.IsLastComponent(handles[2]) {
		t.Error("last handle not reported as last component")
	}
	if o.IsFirstComponent(handles[1]) || o.IsLastComponent(handles[0]) {
		t.Error("middle/first handle misreported")
	}
}

func TestIsTransCompleteRequiresEveryHandleAcked(t *testing.T) {
	o, _, _ := newTestOps(t)
	if err := o.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	handles := o.Handles()

	o.mu.Lock()
	for _, h := range handles {
		o.expected[expectedKey{h, ilcore.StateIdle}] = true
	}
	o.mu.Unlock()

	if o.IsTransComplete(handles[0], ilcore.StateIdle) {
		t.Fatal("IsTransComplete true before any handle acked")
	}

	o.AckTrans(handles[0], ilcore.StateIdle)
	if o.IsTransComplete(handles[0], ilcore.StateIdle) {
		t.Fatal("IsTransComplete true with two handles still outstanding")
	}

	o.AckTrans(handles[1], ilcore.StateIdle)
	if o.IsTransComplete(handles[0], ilcore.StateIdle) {
		t.Fatal("IsTransComplete true with one handle still outstanding")
	}

	o.AckTrans(handles[2], ilcore.StateIdle)
	if !o.IsTransComplete(handles[0], ilcore.StateIdle) {
		t.Fatal("IsTransComplete false after every handle acked")
	}
}

func TestTransitionOrderReversesForDownwardTargets(t *testing.T) {
	o, _, _ := newTestOps(t)
	if err := o.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	handles := o.Handles()

	up := o.transitionOrder(ilcore.StateExecuting)
	if up[0] != handles[0] || up[2] != handles[2] {
		t.Fatalf("upward order = %v, want source-first %v", up, handles)
	}

	down := o.transitionOrder(ilcore.StateIdle)
	if down[0] != handles[2] || down[2] != handles[0] {
		t.Fatalf("downward order = %v, want sink-first (reverse of %v)", down, handles)
	}
}

func TestIsFatalErrorClassifiesKnownCodes(t *testing.T) {
	o, _, _ := newTestOps(t)
	if !o.IsFatalError(ilcore.ErrorTimeout) {
		t.Error("ErrorTimeout should be fatal")
	}
	if !o.IsFatalError(ilcore.ErrorFormatNotDetected) {
		t.Error("ErrorFormatNotDetected should be fatal")
	}
	if o.IsFatalError(ilcore.ErrorNone) {
		t.Error("ErrorNone should not be fatal")
	}
}

func TestAckMethodsInvokeOutboundCallbacks(t *testing.T) {
	o, _, out := newTestOps(t)

	o.AckLoaded()
	o.AckExecd()
	o.AckPaused()
	o.AckUnpaused()
	o.AckStopped()
	o.AckUnloaded()

	if out.loaded != 1 || out.execd != 1 || out.paused != 1 || out.resumed != 1 || out.stopped != 1 || out.unloaded != 1 {
		t.Fatalf("outbound callback counts = %+v, want all 1", out)
	}
}

func TestRecordAndIsDestinationState(t *testing.T) {
	o, _, _ := newTestOps(t)
	if o.IsDestinationState(ilcore.StateIdle) {
		t.Fatal("destination state set before RecordDestination")
	}
	o.RecordDestination(ilcore.StateIdle)
	if !o.IsDestinationState(ilcore.StateIdle) {
		t.Fatal("IsDestinationState false after RecordDestination")
	}
	if o.IsDestinationState(ilcore.StateLoaded) {
		t.Fatal("IsDestinationState true for a state never recorded")
	}
}

// SPDX-License-Identifier: MIT

package graphfsm

import (
	"context"
	"sync"
	"testing"

	"github.com/tizonia-project/tizonia-go/internal/callback"
	"github.com/tizonia-project/tizonia-go/internal/component"
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/ops"
	"github.com/tizonia-project/tizonia-go/internal/probe"
)

// collectingEnqueuer stands in for the real command queue in these
// tests: rather than a channel drained by a worker goroutine, it just
// buffers events.Event values so the test can drive the FSM one event
// at a time, synchronously, and assert on intermediate states. Using
// component.NewFakeCore(false) (auto-complete mode) with this harness
// still requires the test to explicitly dispatch every OmxTrans/
// OmxPortDisabled/etc. callback the fake raises, exactly as the real
// dispatcher would, just without the goroutine.
type collectingEnqueuer struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collectingEnqueuer) Enqueue(_ context.Context, ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collectingEnqueuer) pop() (events.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return events.Event{}, false
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev, true
}

// drainAll dispatches every currently queued event, plus whatever new
// events that dispatch produces, until the queue goes dry. This is
// the test's stand-in for queue.Dispatcher.Run's loop.
func drainAll(t *testing.T, m *fsm.Machine, enq *collectingEnqueuer) {
	t.Helper()
	for {
		ev, ok := enq.pop()
		if !ok {
			return
		}
		if err := m.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s): %v", ev.Kind.String(), err)
		}
	}
}

func decoderTestHandles() ([]ops.ComponentSpec, []ops.TunnelSpec) {
	specs := []ops.ComponentSpec{
		{Role: "file_reader.binary", Name: "reader"},
		{Role: "audio_decoder.mp3", Name: "decoder"},
		{Role: "audio_renderer.pcm", Name: "renderer"},
	}
	tunnels := []ops.TunnelSpec{
		{OutComponent: 0, OutPort: 1, InComponent: 1, InPort: 0},
		{OutComponent: 1, OutPort: 1, InComponent: 2, InPort: 0},
	}
	return specs, tunnels
}

type decoderHarness struct {
	m   *fsm.Machine
	enq *collectingEnqueuer
	o   *ops.Ops
}

func newDecoderHarness(t *testing.T) *decoderHarness {
	t.Helper()
	enq := &collectingEnqueuer{}
	adapter := callback.New(context.Background(), enq)
	core := component.NewFakeCore(false)
	specs, tunnels := decoderTestHandles()
	o := ops.New(core, adapter, probe.StaticProber{Result: probe.Result{
		Container:  "mp3",
		Coding:     ilcore.CodingMP3,
		SampleRate: 44100,
		Channels:   2,
	}}, &noopOutbound{}, "decoder-test", nil, specs, tunnels)

	d := Deps{Ops: o}
	m := BuildDecoder(d, StaticHooks{})
	return &decoderHarness{m: m, enq: enq, o: o}
}

type noopOutbound struct{}

func (noopOutbound) OnLoaded()                            {}
func (noopOutbound) OnExecd()                             {}
func (noopOutbound) OnPaused()                            {}
func (noopOutbound) OnResumed()                           {}
func (noopOutbound) OnStopped()                           {}
func (noopOutbound) OnUnloaded()                          {}
func (noopOutbound) OnMetadata(ilcore.MetadataItem, bool) {}
func (noopOutbound) OnVolumeAcked(int)                    {}
func (noopOutbound) OnError(ilcore.ErrorCode, string)     {}

func dispatchAndDrain(t *testing.T, h *decoderHarness, ev events.Event) {
	t.Helper()
	if err := h.m.Dispatch(ev); err != nil {
		t.Fatalf("Dispatch(%s): %v", ev.Kind.String(), err)
	}
	drainAll(t, h.m, h.enq)
}

func TestDecoderLifecycleHappyPath(t *testing.T) {
	h := newDecoderHarness(t)

	dispatchAndDrain(t, h, events.Event{Kind: events.KindLoad})
	dispatchAndDrain(t, h, events.Event{Kind: events.KindExecute,
		Config: &events.GraphConfig{URIList: []string{"song.mp3"}}})

	if got, want := h.m.String(), "Executing"; got != want {
		t.Fatalf("state after configuring = %q, want %q", got, want)
	}

	dispatchAndDrain(t, h, events.Event{Kind: events.KindPause})
	if got := h.m.String(); got != "Paused" {
		t.Fatalf("state after pause = %q, want Paused", got)
	}

	dispatchAndDrain(t, h, events.Event{Kind: events.KindExecute})
	if got := h.m.String(); got != "Executing" {
		t.Fatalf("state after unpause = %q, want Executing", got)
	}

	dispatchAndDrain(t, h, events.Event{Kind: events.KindStop})
	if got := h.m.String(); got != "Idle" {
		t.Fatalf("state after stop = %q, want Idle", got)
	}

	dispatchAndDrain(t, h, events.Event{Kind: events.KindUnload})
	if got := h.m.String(); got != "Unloaded" {
		t.Fatalf("state after unload = %q, want Unloaded", got)
	}
}

func TestDecoderResumeFromIdle(t *testing.T) {
	h := newDecoderHarness(t)

	dispatchAndDrain(t, h, events.Event{Kind: events.KindLoad})
	dispatchAndDrain(t, h, events.Event{Kind: events.KindExecute,
		Config: &events.GraphConfig{URIList: []string{"song.mp3"}}})
	dispatchAndDrain(t, h, events.Event{Kind: events.KindStop})
	if got := h.m.String(); got != "Idle" {
		t.Fatalf("state after stop = %q, want Idle", got)
	}

	dispatchAndDrain(t, h, events.Event{Kind: events.KindExecute})
	if got := h.m.String(); got != "Executing" {
		t.Fatalf("state after resume from idle = %q, want Executing", got)
	}
}

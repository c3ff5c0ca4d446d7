// SPDX-License-Identifier: MIT

package graph

import (
	"context"
	"testing"
	"time"

	"github.com/tizonia-project/tizonia-go/internal/component"
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/graphfsm"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/ops"
	"github.com/tizonia-project/tizonia-go/internal/probe"
)

// recordingOutbound captures lifecycle acknowledgments on buffered
// channels, so a test goroutine can block on the next one with a
// timeout instead of polling the graph's internal state.
type recordingOutbound struct {
	loaded   chan struct{}
	execd    chan struct{}
	paused   chan struct{}
	resumed  chan struct{}
	stopped  chan struct{}
	unloaded chan struct{}
	errs     chan string
}

func newRecordingOutbound() *recordingOutbound {
	return &recordingOutbound{
		loaded:   make(chan struct{}, 8),
		execd:    make(chan struct{}, 8),
		paused:   make(chan struct{}, 8),
		resumed:  make(chan struct{}, 8),
		stopped:  make(chan struct{}, 8),
		unloaded: make(chan struct{}, 8),
		errs:     make(chan string, 8),
	}
}

func (o *recordingOutbound) OnLoaded()   { o.loaded <- struct{}{} }
func (o *recordingOutbound) OnExecd()    { o.execd <- struct{}{} }
func (o *recordingOutbound) OnPaused()   { o.paused <- struct{}{} }
func (o *recordingOutbound) OnResumed()  { o.resumed <- struct{}{} }
func (o *recordingOutbound) OnStopped()  { o.stopped <- struct{}{} }
func (o *recordingOutbound) OnUnloaded() { o.unloaded <- struct{}{} }

func (o *recordingOutbound) OnMetadata(ilcore.MetadataItem, bool) {}
func (o *recordingOutbound) OnVolumeAcked(int)                    {}
func (o *recordingOutbound) OnError(code ilcore.ErrorCode, message string) {
	o.errs <- message
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// decoderSpecsAndTunnels mirrors factory.Create's shape for a decoder
// graph: a source, one middle (decoder) component, and a renderer,
// tunnelled source->middle->renderer.
func decoderSpecsAndTunnels() ([]ops.ComponentSpec, []ops.TunnelSpec) {
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

func newTestGraph(t *testing.T, out *recordingOutbound) *Graph {
	t.Helper()
	specs, tunnels := decoderSpecsAndTunnels()
	cfg := Config{
		Name:    "test",
		Variant: graphfsm.VariantDecoder,
		Hooks:   graphfsm.StaticHooks{},
		Core:    component.NewFakeCore(false),
		Prober: probe.StaticProber{Result: probe.Result{
			Container:  "mp3",
			Coding:     ilcore.CodingMP3,
			SampleRate: 44100,
			Channels:   2,
		}},
		Outbound:      out,
		Specs:         specs,
		Tunnels:       tunnels,
		QueueCapacity: 32,
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestGraphLoadExecutePauseResumeStop(t *testing.T) {
	out := newRecordingOutbound()
	g := newTestGraph(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- g.Run(ctx) }()

	if err := g.Load(ctx, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	waitFor(t, out.loaded, "OnLoaded")

	gcfg := &events.GraphConfig{URIList: []string{"song.mp3"}}
	if err := g.Execute(ctx, gcfg); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	waitFor(t, out.execd, "OnExecd")

	if err := g.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	waitFor(t, out.paused, "OnPaused")

	if err := g.Execute(ctx, gcfg); err != nil {
		t.Fatalf("resume Execute: %v", err)
	}
	waitFor(t, out.resumed, "OnResumed")

	if err := g.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitFor(t, out.stopped, "OnStopped")

	if err := g.Unload(ctx); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	waitFor(t, out.unloaded, "OnUnloaded")

	cancel()
	select {
	case <-runErr:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestGraphKillStopsDispatcher(t *testing.T) {
	out := newRecordingOutbound()
	g := newTestGraph(t, out)

	ctx := context.Background()
	runErr := make(chan error, 1)
	go func() { runErr <- g.Run(ctx) }()

	if err := g.Load(ctx, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	waitFor(t, out.loaded, "OnLoaded")

	if err := g.Kill(ctx); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run returned error after Kill: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Kill")
	}
}

func TestGraphName(t *testing.T) {
	out := newRecordingOutbound()
	g := newTestGraph(t, out)
	if g.Name() != "test" {
		t.Errorf("Name() = %q, want %q", g.Name(), "test")
	}
}

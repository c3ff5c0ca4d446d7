// SPDX-License-Identifier: MIT

// Package graph ties one playback graph together: the ops service, the
// variant-specific FSM, the command queue/dispatcher, and the OMX
// callback adapter (spec section 2, "the core"). A Graph is the unit
// the supervisor runs and the unit a caller drives through the Upward
// interface (spec section 6).
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tizonia-project/tizonia-go/internal/callback"
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/fsm"
	"github.com/tizonia-project/tizonia-go/internal/graphfsm"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/ops"
	"github.com/tizonia-project/tizonia-go/internal/probe"
	"github.com/tizonia-project/tizonia-go/internal/queue"
)

// Config describes one graph instance to build: its variant, the
// components/tunnels its ops layer owns, and everything the ops layer
// needs to talk to the outside world.
type Config struct {
	Name    string
	Variant graphfsm.Variant
	Hooks   graphfsm.Hooks

	Core     ilcore.ILCore
	Prober   probe.Prober
	Outbound ops.Outbound

	Specs   []ops.ComponentSpec
	Tunnels []ops.TunnelSpec

	QueueCapacity int
	Logger        *slog.Logger
}

// Graph is a single running playback pipeline: one command queue drained
// by one worker goroutine (Run), which is the only goroutine that ever
// touches the FSM or calls into ILCore (spec section 5).
type Graph struct {
	name   string
	ops    *ops.Ops
	machine *fsm.Machine
	q       *queue.Queue
	dispatcher *queue.Dispatcher
	adapter    *callback.Adapter
	logger     *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New builds a Graph from cfg. The FSM's initial-state entry actions
// (if any) run immediately; nothing is loaded into OMX IL until the
// first Load call is enqueued and Run's worker goroutine processes it.
func New(cfg Config) (*Graph, error) {
	q := queue.New(cfg.QueueCapacity)
	adapter := callback.New(context.Background(), q)
	o := ops.New(cfg.Core, adapter, cfg.Prober, cfg.Outbound, cfg.Name, cfg.Logger, cfg.Specs, cfg.Tunnels)

	g := &Graph{name: cfg.Name, ops: o, q: q, adapter: adapter, logger: cfg.Logger}

	deps := graphfsm.Deps{Ops: o, Logger: cfg.Logger, Ctx: g.currentCtx}
	m, err := buildMachine(cfg.Variant, deps, cfg.Hooks)
	if err != nil {
		return nil, err
	}
	g.machine = m
	g.dispatcher = queue.NewDispatcher(q, g, o, cfg.Name, cfg.Logger)
	return g, nil
}

func buildMachine(variant graphfsm.Variant, d graphfsm.Deps, hooks graphfsm.Hooks) (*fsm.Machine, error) {
	if hooks == nil {
		hooks = graphfsm.StaticHooks{}
	}
	switch variant {
	case graphfsm.VariantDecoder:
		return graphfsm.BuildDecoder(d, hooks), nil
	case graphfsm.VariantHTTPServer:
		return graphfsm.BuildHTTPServer(d), nil
	case graphfsm.VariantStreamingService:
		return graphfsm.BuildStreamingService(d, hooks), nil
	case graphfsm.VariantChromecast:
		return graphfsm.BuildChromecast(d), nil
	case graphfsm.VariantYouTube:
		return graphfsm.BuildYoutube(d, hooks), nil
	default:
		return nil, fmt.Errorf("graph: unknown variant %v", variant)
	}
}

// Name satisfies supervisor.Service.
func (g *Graph) Name() string { return g.name }

func (g *Graph) currentCtx() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctx
}

// Run drains the graph's command queue until ctx is cancelled or a
// Kill command is observed, satisfying supervisor.Service. It must be
// called from exactly one goroutine per Graph.
func (g *Graph) Run(ctx context.Context) error {
	g.mu.Lock()
	g.ctx = ctx
	g.mu.Unlock()

	err := g.dispatcher.Run(ctx)
	g.adapter.Close()
	return err
}

// Process feeds one event to the graph's FSM, satisfying
// queue.Processor. Always called from the dispatcher's single worker
// goroutine.
func (g *Graph) Process(ev events.Event) {
	if err := g.machine.Dispatch(ev); err != nil {
		if g.logger != nil {
			g.logger.Error("dispatch failed", "graph", g.name, "event", ev.Kind.String(), "error", err)
		}
	}
}

// State reports the FSM's current position (top-level state, plus the
// active submachine's state if any), for diagnostics/UI display.
func (g *Graph) State() string { return g.machine.String() }

func (g *Graph) enqueue(ctx context.Context, ev events.Event) error {
	return g.q.Enqueue(ctx, ev)
}

// Kill requests the worker goroutine to finish its current event and
// exit, without waiting for ctx cancellation.
func (g *Graph) Kill(ctx context.Context) error {
	return g.enqueue(ctx, events.Kill())
}

// The following methods are the Upward interface (spec section 6):
// load(config), execute(config), pause(), stop(), unload(), skip(delta),
// seek(pos), volume(v), volume_step(d), mute(), position(p). Every call
// is non-blocking: it only enqueues, never touches OMX IL itself.

func (g *Graph) Load(ctx context.Context, cfg *events.GraphConfig) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindLoad, Config: cfg})
}

func (g *Graph) Execute(ctx context.Context, cfg *events.GraphConfig) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindExecute, Config: cfg})
}

func (g *Graph) Pause(ctx context.Context) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindPause})
}

func (g *Graph) Stop(ctx context.Context) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindStop})
}

func (g *Graph) Unload(ctx context.Context) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindUnload})
}

func (g *Graph) Skip(ctx context.Context, offset int) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindSkip, SkipOffset: offset})
}

func (g *Graph) Seek(ctx context.Context, pos time.Duration) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindSeek, SeekPos: pos})
}

func (g *Graph) Volume(ctx context.Context, absolute float64) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindVolume, VolumeAbs: absolute})
}

func (g *Graph) VolumeStep(ctx context.Context, delta int) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindVolumeStep, VolumeDelta: delta})
}

func (g *Graph) Mute(ctx context.Context) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindMute})
}

func (g *Graph) Position(ctx context.Context, value time.Duration) error {
	return g.enqueue(ctx, events.Event{Kind: events.KindPosition, PositionVal: value})
}

// SPDX-License-Identifier: MIT

// Package graphfsm builds the concrete per-graph-variant fsm.Machine
// described in spec section 4.5: a top-level lifecycle table common to
// all variants, plus the Configuring/Skipping/Auto-detecting/
// Updating-graph/Reconfiguring-tunnel-i submachines, assembled
// differently per variant through a small trait interface instead of a
// class hierarchy (spec section 9's re-architecture guidance: "no
// inheritance chain required").
package graphfsm

import (
	"context"
	"log/slog"

	"github.com/tizonia-project/tizonia-go/internal/ops"
)

// Variant identifies which concrete transition table (BuildDecoder,
// BuildHTTPServer, BuildStreamingService, BuildChromecast or
// BuildYoutube) a graph assembles.
type Variant int

const (
	VariantDecoder Variant = iota
	VariantHTTPServer
	VariantStreamingService
	VariantChromecast
	VariantYouTube
)

func (v Variant) String() string {
	switch v {
	case VariantHTTPServer:
		return "http-server"
	case VariantStreamingService:
		return "streaming-service"
	case VariantChromecast:
		return "chromecast"
	case VariantYouTube:
		return "youtube"
	default:
		return "decoder"
	}
}

// Hooks is the trait every variant implements, replacing the original
// C++ class hierarchy's virtual do_init/probe overrides (spec section
// 9): behavior that differs by variant goes through here rather than
// through additional top-level transition rows.
type Hooks interface {
	// NeedsDisabledEvt reports whether entering Configuring must wait
	// for an OmxPortDisabled acknowledgment before probing, or can
	// proceed directly (is_disabled_evt_required).
	NeedsDisabledEvt() bool
	// NeedsPortSettingsEvt reports whether auto-detection waits for an
	// explicit OmxPortSettings event in addition to OmxFormatDetected.
	NeedsPortSettingsEvt() bool
}

// StaticHooks is the concrete Hooks every variant built by this
// package uses: the two traits are fixed per variant/component
// combination rather than computed at runtime, so a pair of bools
// wrapped in the interface is all concrete variants need.
type StaticHooks struct {
	DisabledEvt     bool
	PortSettingsEvt bool
}

func (h StaticHooks) NeedsDisabledEvt() bool     { return h.DisabledEvt }
func (h StaticHooks) NeedsPortSettingsEvt() bool { return h.PortSettingsEvt }

// Deps bundles everything a variant's table-building function needs:
// the ops service actions are bound to, a logger, and a way to recover
// the context a running graph is scoped to (the worker goroutine sets
// this once per Run call; spec section 5's single-goroutine model
// means it never needs to vary mid-event).
type Deps struct {
	Ops    *ops.Ops
	Logger *slog.Logger
	Ctx    func() context.Context
}

func (d Deps) ctx() context.Context {
	if d.Ctx != nil {
		if c := d.Ctx(); c != nil {
			return c
		}
	}
	return context.Background()
}

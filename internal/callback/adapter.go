// SPDX-License-Identifier: MIT

// Package callback implements the OMX IL callback adapter (spec
// section 4.3): the trampolines registered at OMX_GetHandle for every
// component a graph owns, translating raw EventHandler/
// EmptyBufferDone/FillBufferDone callbacks into typed events.Event
// values and enqueuing them. The adapter never calls back into OMX IL
// and never blocks beyond the queue's own backpressure.
package callback

import (
	"context"
	"sync/atomic"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// Enqueuer is the minimal surface the adapter needs from a graph's
// dispatcher/queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev events.Event) error
}

// Adapter wraps one graph's Enqueuer with a liveness flag: once the
// graph is torn down (Close), callbacks arriving from components on
// their own internal threads are discarded rather than enqueued,
// per spec section 4.2's cancellation semantics.
type Adapter struct {
	target Enqueuer
	ctx    context.Context
	alive  atomic.Bool
}

// New builds an Adapter bound to target, live until Close is called.
// ctx is used only to bound Enqueue's blocking-on-full-queue wait, not
// as a liveness signal by itself (liveness is tracked by Close so a
// cancelled-but-not-yet-closed graph can still drain in-flight work).
func New(ctx context.Context, target Enqueuer) *Adapter {
	a := &Adapter{target: target, ctx: ctx}
	a.alive.Store(true)
	return a
}

// Close marks the adapter dead: subsequent callbacks are dropped.
func (a *Adapter) Close() { a.alive.Store(false) }

func (a *Adapter) enqueue(ev events.Event) {
	if !a.alive.Load() {
		return
	}
	_ = a.target.Enqueue(a.ctx, ev)
}

// Callbacks returns the ilcore.Callbacks trampoline table to register
// with ILCore.GetHandle for component h.
func (a *Adapter) Callbacks() ilcore.Callbacks {
	return ilcore.Callbacks{
		OnEvent:           a.onEvent,
		OnEmptyBufferDone: func(ilcore.ComponentHandle, int) {},
		OnFillBufferDone:  func(ilcore.ComponentHandle, int) {},
	}
}

func (a *Adapter) onEvent(h ilcore.ComponentHandle, raw ilcore.RawEvent) {
	switch raw.Kind {
	case ilcore.EventCmdComplete:
		switch ilcore.Command(raw.Data1) {
		case ilcore.CommandStateSet:
			a.enqueue(events.Event{Kind: events.KindOmxTrans, Handle: h, ReachedStat: ilcore.StateID(raw.Data2), Err: raw.Err})
		case ilcore.CommandPortDisable:
			a.enqueue(events.Event{Kind: events.KindOmxPortDisabled, Handle: h, Port: raw.Port, Err: raw.Err})
		case ilcore.CommandPortEnable:
			a.enqueue(events.Event{Kind: events.KindOmxPortEnabled, Handle: h, Port: raw.Port, Err: raw.Err})
		case ilcore.CommandFlush:
			a.enqueue(events.Event{Kind: events.KindOmxPortFlushed, Handle: h, Port: raw.Port, Err: raw.Err})
		}
	case ilcore.EventError:
		a.enqueue(events.Event{Kind: events.KindOmxErr, Handle: h, Port: raw.Port, Err: raw.Err})
	case ilcore.EventPortSettingsChanged:
		a.enqueue(events.Event{Kind: events.KindOmxPortSettings, Handle: h, Port: raw.Port, Index: raw.Index})
	case ilcore.EventIndexSettingChanged:
		a.enqueue(events.Event{Kind: events.KindOmxIndexSetting, Handle: h, Port: raw.Port, Index: raw.Index})
	case ilcore.EventFormatDetected:
		a.enqueue(events.Event{Kind: events.KindOmxFormatDetected, Handle: h})
	case ilcore.EventBufferFlag:
		a.enqueue(events.Event{Kind: events.KindOmxEos, Handle: h, Port: raw.Port, Flags: raw.Flags})
	case ilcore.EventOther:
		a.enqueue(events.Event{Kind: events.KindOmxEvt, Handle: h, RawCode: raw.Data1, Data1: raw.Data1, Data2: raw.Data2})
	}
}

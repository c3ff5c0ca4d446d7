// SPDX-License-Identifier: MIT

// Package ops implements the graph operations layer (spec section
// 4.4): the stateful service a graph owns that holds component
// handles, tracks pending transition/port acknowledgments, issues OMX
// IL calls in the correct order, runs the stream-probing hook, and
// records the last internal error.
//
// Every exported method here corresponds to one of the named
// operations in spec.md's "Operations (selected)" list, grounded on
// tizgraphops.hpp's do_* vtable from the original C++ implementation.
// Each is atomic from the caller's point of view: it may issue one or
// more OMX IL calls, and any failure is both returned to the caller
// and recorded into the sticky internal-error slot the dispatcher
// polls after every action (spec section 4.2).
package ops

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tizonia-project/tizonia-go/internal/callback"
	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/probe"
)

// SkipDefault is the default playlist jump when store_skip is invoked
// without an explicit offset (tizgraphops.hpp SKIP_DEFAULT_VALUE).
const SkipDefault = 1

// ComponentSpec describes one component a graph's ops must instantiate.
type ComponentSpec struct {
	Role string
	Name string
}

// TunnelSpec declares a tunnel between two components by index into
// the ops component list, before handles exist.
type TunnelSpec struct {
	OutComponent int
	OutPort      int
	InComponent  int
	InPort       int
}

// Outbound is the graph's outbound callback interface (spec section
// 6): fired on lifecycle acknowledgments, metadata, volume acks, and
// terminal error.
type Outbound interface {
	OnLoaded()
	OnExecd()
	OnPaused()
	OnResumed()
	OnStopped()
	OnUnloaded()
	OnMetadata(item ilcore.MetadataItem, isHeading bool)
	OnVolumeAcked(percent int)
	OnError(code ilcore.ErrorCode, message string)
}

// expectedKey identifies one outstanding transition acknowledgment.
type expectedKey struct {
	handle ilcore.ComponentHandle
	state  ilcore.StateID
}

type expectedPortKey struct {
	handle ilcore.ComponentHandle
	port   int
}

// Ops is the stateful operations service owned by a single graph.
type Ops struct {
	mu sync.Mutex

	core     ilcore.ILCore
	adapter  *callback.Adapter
	prober   probe.Prober
	outbound Outbound
	logger   *slog.Logger
	name     string

	specs   []ComponentSpec
	handles []ilcore.ComponentHandle
	roles   map[ilcore.ComponentHandle]string
	names   map[ilcore.ComponentHandle]string

	tunnelSpecs []TunnelSpec
	tunnels     []ilcore.Tunnel

	expected     map[expectedKey]bool
	expectedDisc map[expectedPortKey]bool
	expectedEna  map[expectedPortKey]bool

	config          *events.GraphConfig
	playlistIdx     int
	pendingSkip     int
	pendingSeek     bool
	pendingPosition time.Duration

	destination ilcore.StateID
	lastProbe   probe.Result
	probeOK     bool

	lastErr error // internal error slot; nil means OK
}

// New constructs an Ops for a graph made of the given component specs
// (in data-flow order: sources first, sinks last) and tunnel
// declarations between them.
func New(core ilcore.ILCore, adapter *callback.Adapter, prober probe.Prober, outbound Outbound, name string, logger *slog.Logger, specs []ComponentSpec, tunnels []TunnelSpec) *Ops {
	return &Ops{
		core:         core,
		adapter:      adapter,
		prober:       prober,
		outbound:     outbound,
		logger:       logger,
		name:         name,
		specs:        specs,
		tunnelSpecs:  tunnels,
		roles:        make(map[ilcore.ComponentHandle]string),
		names:        make(map[ilcore.ComponentHandle]string),
		expected:     make(map[expectedKey]bool),
		expectedDisc: make(map[expectedPortKey]bool),
		expectedEna:  make(map[expectedPortKey]bool),
		destination:  ilcore.StateInvalid,
	}
}

func (o *Ops) logf(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, append([]any{"graph", o.name}, args...)...)
	}
}

// fail records err as the sticky internal error and returns it, so
// every call site can `return o.fail(err)`.
func (o *Ops) fail(err error) error {
	if err != nil {
		o.mu.Lock()
		o.lastErr = err
		o.mu.Unlock()
	}
	return err
}

// InternalError returns the current sticky internal error as an
// *ilcore.Err (ErrorNone if the last operation succeeded), per spec
// section 4.4's internal_error() accessor.
func (o *Ops) InternalError() *ilcore.Err {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastErr == nil {
		return &ilcore.Err{Code: ilcore.ErrorNone}
	}
	var e *ilcore.Err
	if as(o.lastErr, &e) {
		return e
	}
	return &ilcore.Err{Code: ilcore.ErrorUnspecified, Msg: o.lastErr.Error()}
}

func as(err error, target **ilcore.Err) bool {
	e, ok := err.(*ilcore.Err)
	if !ok {
		return false
	}
	*target = e
	return true
}

// ResetInternalError clears the sticky internal error, per spec
// section 8's testable property 7.
func (o *Ops) ResetInternalError() {
	o.mu.Lock()
	o.lastErr = nil
	o.mu.Unlock()
}

// IsLastOpSucceeded implements the is_last_op_succeeded guard: true
// iff the last ops method did not set an internal error.
func (o *Ops) IsLastOpSucceeded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr == nil
}

// Handles returns the ordered component handle list.
func (o *Ops) Handles() []ilcore.ComponentHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ilcore.ComponentHandle, len(o.handles))
	copy(out, o.handles)
	return out
}

// IsLastComponent / IsFirstComponent back is_last_eos/is_first_eos
// (spec section 9 open question; grounded on tizgraphops.hpp).
func (o *Ops) IsLastComponent(h ilcore.ComponentHandle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.handles) > 0 && o.handles[len(o.handles)-1] == h
}

func (o *Ops) IsFirstComponent(h ilcore.ComponentHandle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.handles) > 0 && o.handles[0] == h
}

// Load instantiates every component via OMX_GetHandle and registers
// the callback adapter as its trampoline table.
func (o *Ops) Load(ctx context.Context) error {
	o.mu.Lock()
	specs := append([]ComponentSpec(nil), o.specs...)
	o.mu.Unlock()

	handles := make([]ilcore.ComponentHandle, 0, len(specs))
	for _, spec := range specs {
		h, err := o.core.GetHandle(ctx, spec.Role, spec.Name, o.adapter.Callbacks())
		if err != nil {
			return o.fail(fmt.Errorf("load %s: %w", spec.Name, err))
		}
		handles = append(handles, h)
	}

	o.mu.Lock()
	o.handles = handles
	for i, h := range handles {
		o.roles[h] = specs[i].Role
		o.names[h] = specs[i].Name
	}
	o.mu.Unlock()

	o.logf("components loaded", "count", len(handles))
	return nil
}

// Setup calls OMX_SetupTunnel for every declared tunnel.
func (o *Ops) Setup(ctx context.Context) error {
	o.mu.Lock()
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	specs := append([]TunnelSpec(nil), o.tunnelSpecs...)
	o.mu.Unlock()

	tunnels := make([]ilcore.Tunnel, 0, len(specs))
	for i, t := range specs {
		out := handles[t.OutComponent]
		in := handles[t.InComponent]
		if err := o.core.SetupTunnel(ctx, out, t.OutPort, in, t.InPort); err != nil {
			return o.fail(fmt.Errorf("setup tunnel %d: %w", i, err))
		}
		tunnels = append(tunnels, ilcore.Tunnel{
			ID: i, OutHandle: out, OutPort: t.OutPort, InHandle: in, InPort: t.InPort,
			Supplier: ilcore.SupplierInput, Enabled: true,
		})
	}

	o.mu.Lock()
	o.tunnels = tunnels
	o.mu.Unlock()

	o.logf("tunnels set up", "count", len(tunnels))
	return nil
}

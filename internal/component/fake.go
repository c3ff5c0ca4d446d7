// SPDX-License-Identifier: MIT

package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// FakeCore is an in-process ilcore.ILCore backed by one Machine per
// handle. State transitions and port disable/enable complete
// immediately (synchronously, within SendCommand) unless Manual mode
// is enabled, in which case tests drive completion explicitly with
// Advance/AdvancePort and observe the resulting callback. This lets
// the same fake exercise both "happy path, nothing interesting
// happens" graph tests and tests of the expected-transition
// bookkeeping in internal/ops that depend on callbacks arriving later.
type FakeCore struct {
	mu       sync.Mutex
	handles  map[ilcore.ComponentHandle]*fakeComponent
	manual   bool
	tunnels  map[tunnelKey]bool
}

type fakeComponent struct {
	machine *Machine
	cb      ilcore.Callbacks
	params  map[paramKey]any
	configs map[ilcore.Index]any
	meta    []ilcore.MetadataItem
}

type paramKey struct {
	idx  ilcore.Index
	port int
}

type tunnelKey struct {
	out     ilcore.ComponentHandle
	outPort int
	in      ilcore.ComponentHandle
	inPort  int
}

// NewFakeCore creates a fake ILCore. When manual is true, StateSet and
// port disable/enable commands are accepted (or rejected) synchronously
// but do not complete until Advance/AdvancePort is called.
func NewFakeCore(manual bool) *FakeCore {
	return &FakeCore{
		handles: make(map[ilcore.ComponentHandle]*fakeComponent),
		tunnels: make(map[tunnelKey]bool),
		manual:  manual,
	}
}

// MakeHandle builds a ComponentHandle for test setup outside of
// GetHandle (e.g. to pre-seed a specific port topology).
func MakeHandle(role, name string) ilcore.ComponentHandle {
	return newHandle(role, name)
}

func newHandle(role, name string) ilcore.ComponentHandle {
	id := uuid.New()
	return ilcore.ComponentHandleForTest(binaryToUint64(id), role, name)
}

func binaryToUint64(id uuid.UUID) uint64 {
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	if v == 0 {
		v = 1
	}
	return v
}

func (f *FakeCore) GetHandle(ctx context.Context, role, name string, cb ilcore.Callbacks) (ilcore.ComponentHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := newHandle(role, name)
	f.handles[h] = &fakeComponent{
		machine: NewMachine(map[int]PortState{
			0: {Enabled: true, Population: ilcore.Unpopulated},
			1: {Enabled: true, Population: ilcore.Unpopulated},
		}),
		cb:      cb,
		params:  make(map[paramKey]any),
		configs: make(map[ilcore.Index]any),
	}
	return h, nil
}

func (f *FakeCore) FreeHandle(ctx context.Context, h ilcore.ComponentHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handles[h]; !ok {
		return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown handle"}
	}
	delete(f.handles, h)
	return nil
}

func (f *FakeCore) component(h ilcore.ComponentHandle) (*fakeComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.handles[h]
	if !ok {
		return nil, &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown handle"}
	}
	return c, nil
}

func (f *FakeCore) SendCommand(ctx context.Context, h ilcore.ComponentHandle, cmd ilcore.Command, param int) error {
	c, err := f.component(h)
	if err != nil {
		return err
	}

	switch cmd {
	case ilcore.CommandStateSet:
		if err := c.machine.SendCommandStateSet(ilcore.StateID(param)); err != nil {
			return err
		}
		if !f.manual {
			f.completeTransition(h, c)
		}
		return nil

	case ilcore.CommandPortDisable:
		if err := c.machine.SendCommandPortDisable(param); err != nil {
			return err
		}
		if !f.manual {
			f.completePortDisable(h, c, param)
		}
		return nil

	case ilcore.CommandPortEnable:
		if err := c.machine.SendCommandPortEnable(param); err != nil {
			return err
		}
		if !f.manual {
			f.completePortEnable(h, c, param)
		}
		return nil

	case ilcore.CommandFlush:
		return nil

	case ilcore.CommandMarkBuffer:
		return c.machine.MarkBuffer(param)
	}
	return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: fmt.Sprintf("unsupported command %d", cmd)}
}

func (f *FakeCore) completeTransition(h ilcore.ComponentHandle, c *fakeComponent) {
	reached, err := c.machine.CompleteTransition()
	f.emit(h, c, ilcore.RawEvent{Kind: ilcore.EventCmdComplete, Data1: int(ilcore.CommandStateSet), Data2: int(reached), Err: asErr(err)})
}

func (f *FakeCore) completePortDisable(h ilcore.ComponentHandle, c *fakeComponent, port int) {
	err := c.machine.CompletePortDisable(port)
	f.emit(h, c, ilcore.RawEvent{Kind: ilcore.EventCmdComplete, Data1: int(ilcore.CommandPortDisable), Port: port, Err: asErr(err)})
}

func (f *FakeCore) completePortEnable(h ilcore.ComponentHandle, c *fakeComponent, port int) {
	err := c.machine.CompletePortEnable(port)
	f.emit(h, c, ilcore.RawEvent{Kind: ilcore.EventCmdComplete, Data1: int(ilcore.CommandPortEnable), Port: port, Err: asErr(err)})
}

// Advance completes a pending StateSet transition on h and delivers
// its EventCmdComplete callback. Only meaningful in manual mode.
func (f *FakeCore) Advance(h ilcore.ComponentHandle) error {
	c, err := f.component(h)
	if err != nil {
		return err
	}
	f.completeTransition(h, c)
	return nil
}

// AdvancePort completes a pending port disable/enable on h/port.
func (f *FakeCore) AdvancePort(h ilcore.ComponentHandle, port int, disabling bool) error {
	c, err := f.component(h)
	if err != nil {
		return err
	}
	if disabling {
		f.completePortDisable(h, c, port)
	} else {
		f.completePortEnable(h, c, port)
	}
	return nil
}

// EmitError synthesizes an OmxErr-shaped callback on h, for tests that
// drive fatal-error / non-fatal-stream-error FSM paths.
func (f *FakeCore) EmitError(h ilcore.ComponentHandle, code ilcore.ErrorCode, port int) {
	c, err := f.component(h)
	if err != nil {
		return
	}
	f.emit(h, c, ilcore.RawEvent{Kind: ilcore.EventError, Port: port, Err: &ilcore.Err{Code: code}})
}

// EmitEOS synthesizes an end-of-stream callback on h.
func (f *FakeCore) EmitEOS(h ilcore.ComponentHandle, port int) {
	c, err := f.component(h)
	if err != nil {
		return
	}
	f.emit(h, c, ilcore.RawEvent{Kind: ilcore.EventBufferFlag, Port: port, Flags: 1})
}

// EmitPortSettingsChanged synthesizes a port-settings-changed callback.
func (f *FakeCore) EmitPortSettingsChanged(h ilcore.ComponentHandle, port int, idx ilcore.Index) {
	c, err := f.component(h)
	if err != nil {
		return
	}
	f.emit(h, c, ilcore.RawEvent{Kind: ilcore.EventPortSettingsChanged, Port: port, Index: idx})
}

// EmitFormatDetected synthesizes an auto-detect completion callback.
func (f *FakeCore) EmitFormatDetected(h ilcore.ComponentHandle) {
	c, err := f.component(h)
	if err != nil {
		return
	}
	f.emit(h, c, ilcore.RawEvent{Kind: ilcore.EventFormatDetected})
}

func (f *FakeCore) emit(h ilcore.ComponentHandle, c *fakeComponent, ev ilcore.RawEvent) {
	if c.cb.OnEvent != nil {
		c.cb.OnEvent(h, ev)
	}
}

func asErr(err error) *ilcore.Err {
	if err == nil {
		return &ilcore.Err{Code: ilcore.ErrorNone}
	}
	if e, ok := err.(*ilcore.Err); ok {
		return e
	}
	return &ilcore.Err{Code: ilcore.ErrorUnspecified, Msg: err.Error()}
}

func (f *FakeCore) GetParameter(ctx context.Context, h ilcore.ComponentHandle, idx ilcore.Index, port int) (any, error) {
	c, err := f.component(h)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return c.params[paramKey{idx, port}], nil
}

func (f *FakeCore) SetParameter(ctx context.Context, h ilcore.ComponentHandle, idx ilcore.Index, port int, value any) error {
	c, err := f.component(h)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.params[paramKey{idx, port}] = value
	return nil
}

func (f *FakeCore) GetConfig(ctx context.Context, h ilcore.ComponentHandle, idx ilcore.Index) (any, error) {
	c, err := f.component(h)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx == ilcore.IndexConfigMetadataItemCount {
		return len(c.meta), nil
	}
	return c.configs[idx], nil
}

func (f *FakeCore) GetMetadataItem(ctx context.Context, h ilcore.ComponentHandle, itemIndex int) (ilcore.MetadataItem, error) {
	c, err := f.component(h)
	if err != nil {
		return ilcore.MetadataItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if itemIndex < 0 || itemIndex >= len(c.meta) {
		return ilcore.MetadataItem{}, &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "metadata index out of range"}
	}
	return c.meta[itemIndex], nil
}

func (f *FakeCore) SetConfig(ctx context.Context, h ilcore.ComponentHandle, idx ilcore.Index, value any) error {
	c, err := f.component(h)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.configs[idx] = value
	return nil
}

func (f *FakeCore) GetExtensionIndex(ctx context.Context, h ilcore.ComponentHandle, name string) (ilcore.Index, error) {
	return ilcore.IndexTizoniaParamBufferPreAnnouncementsMode, nil
}

func (f *FakeCore) SetupTunnel(ctx context.Context, out ilcore.ComponentHandle, outPort int, in ilcore.ComponentHandle, inPort int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tunnels[tunnelKey{out, outPort, in, inPort}] = true
	return nil
}

func (f *FakeCore) TeardownTunnel(ctx context.Context, out ilcore.ComponentHandle, outPort int, in ilcore.ComponentHandle, inPort int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tunnels, tunnelKey{out, outPort, in, inPort})
	return nil
}

func (f *FakeCore) GetState(ctx context.Context, h ilcore.ComponentHandle) (ilcore.StateID, error) {
	c, err := f.component(h)
	if err != nil {
		return ilcore.StateInvalid, err
	}
	return c.machine.State(), nil
}

// SetMetadata pre-seeds the (key, value) pairs GetConfig/
// IndexConfigMetadataItem will hand back for h, for
// ops.RetrieveMetadata tests.
func (f *FakeCore) SetMetadata(h ilcore.ComponentHandle, items []ilcore.MetadataItem) {
	c, err := f.component(h)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.meta = items
}

// MetadataAt returns the (key, value) pair at position i for h,
// mirroring repeated OMX_IndexConfigMetadataItem calls at increasing
// indices.
func (f *FakeCore) MetadataAt(h ilcore.ComponentHandle, i int) (ilcore.MetadataItem, bool) {
	c, err := f.component(h)
	if err != nil {
		return ilcore.MetadataItem{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(c.meta) {
		return ilcore.MetadataItem{}, false
	}
	return c.meta[i], true
}

// Machine exposes the underlying component Machine for h so tests can
// drive port population directly (standing in for UseBuffer/
// AllocateBuffer bookkeeping that SendCommand alone does not model).
func (f *FakeCore) Machine(h ilcore.ComponentHandle) (*Machine, error) {
	c, err := f.component(h)
	if err != nil {
		return nil, err
	}
	return c.machine, nil
}

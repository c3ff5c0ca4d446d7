// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

func (o *Ops) tunnelByID(id int) (ilcore.Tunnel, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range o.tunnels {
		if t.ID == id {
			return t, true
		}
	}
	return ilcore.Tunnel{}, false
}

// DisableTunnel issues PortDisable on both ends of tunnel tid and
// records two expected port acknowledgments.
func (o *Ops) DisableTunnel(ctx context.Context, tid int) error {
	t, ok := o.tunnelByID(tid)
	if !ok {
		return o.fail(&ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: fmt.Sprintf("unknown tunnel %d", tid)})
	}

	o.mu.Lock()
	o.expectedDisc[expectedPortKey{t.OutHandle, t.OutPort}] = true
	o.expectedDisc[expectedPortKey{t.InHandle, t.InPort}] = true
	o.mu.Unlock()

	if err := o.core.SendCommand(ctx, t.OutHandle, ilcore.CommandPortDisable, t.OutPort); err != nil {
		return o.fail(fmt.Errorf("disable tunnel %d out port: %w", tid, err))
	}
	if err := o.core.SendCommand(ctx, t.InHandle, ilcore.CommandPortDisable, t.InPort); err != nil {
		return o.fail(fmt.Errorf("disable tunnel %d in port: %w", tid, err))
	}
	return nil
}

// EnableTunnel issues PortEnable on both ends of tunnel tid.
func (o *Ops) EnableTunnel(ctx context.Context, tid int) error {
	t, ok := o.tunnelByID(tid)
	if !ok {
		return o.fail(&ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: fmt.Sprintf("unknown tunnel %d", tid)})
	}

	o.mu.Lock()
	o.expectedEna[expectedPortKey{t.OutHandle, t.OutPort}] = true
	o.expectedEna[expectedPortKey{t.InHandle, t.InPort}] = true
	o.mu.Unlock()

	if err := o.core.SendCommand(ctx, t.OutHandle, ilcore.CommandPortEnable, t.OutPort); err != nil {
		return o.fail(fmt.Errorf("enable tunnel %d out port: %w", tid, err))
	}
	if err := o.core.SendCommand(ctx, t.InHandle, ilcore.CommandPortEnable, t.InPort); err != nil {
		return o.fail(fmt.Errorf("enable tunnel %d in port: %w", tid, err))
	}
	return nil
}

// FlushTunnel issues OMX_CommandFlush on both ends of tunnel tid
// (tizgraphops.hpp do_flush_tunnel). No transition table calls it;
// tunnel reconfiguration re-enables a tunnel without flushing it.
func (o *Ops) FlushTunnel(ctx context.Context, tid int) error {
	t, ok := o.tunnelByID(tid)
	if !ok {
		return o.fail(&ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: fmt.Sprintf("unknown tunnel %d", tid)})
	}
	if err := o.core.SendCommand(ctx, t.OutHandle, ilcore.CommandFlush, t.OutPort); err != nil {
		return o.fail(fmt.Errorf("flush tunnel %d out port: %w", tid, err))
	}
	if err := o.core.SendCommand(ctx, t.InHandle, ilcore.CommandFlush, t.InPort); err != nil {
		return o.fail(fmt.Errorf("flush tunnel %d in port: %w", tid, err))
	}
	return nil
}

// ReconfigureTunnel reapplies the negotiated port parameters across
// tunnel tid after a port-settings-changed event, pulling the new
// definition from the out port and pushing it to the in port.
func (o *Ops) ReconfigureTunnel(ctx context.Context, tid int) error {
	t, ok := o.tunnelByID(tid)
	if !ok {
		return o.fail(&ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: fmt.Sprintf("unknown tunnel %d", tid)})
	}
	def, err := o.core.GetParameter(ctx, t.OutHandle, ilcore.IndexParamPortDefinition, t.OutPort)
	if err != nil {
		return o.fail(fmt.Errorf("reconfigure tunnel %d: get definition: %w", tid, err))
	}
	if err := o.core.SetParameter(ctx, t.InHandle, ilcore.IndexParamPortDefinition, t.InPort, def); err != nil {
		return o.fail(fmt.Errorf("reconfigure tunnel %d: set definition: %w", tid, err))
	}
	o.logf("tunnel reconfigured", "tunnel", tid)
	return nil
}

// IsTunnelAltered implements the is_tunnel_altered guard: reports
// whether the (handle, port, index) that raised OmxPortSettings
// belongs to tunnel tid.
func (o *Ops) IsTunnelAltered(tid int, h ilcore.ComponentHandle, port int, _ ilcore.Index) bool {
	t, ok := o.tunnelByID(tid)
	if !ok {
		return false
	}
	return (t.OutHandle == h && t.OutPort == port) || (t.InHandle == h && t.InPort == port)
}

// TearDownTunnels issues OMX_TeardownTunnel for every declared tunnel,
// ignoring individual failures (spec section 4.4).
func (o *Ops) TearDownTunnels(ctx context.Context) error {
	o.mu.Lock()
	tunnels := append([]ilcore.Tunnel(nil), o.tunnels...)
	o.mu.Unlock()

	for _, t := range tunnels {
		_ = o.core.TeardownTunnel(ctx, t.OutHandle, t.OutPort, t.InHandle, t.InPort)
	}
	o.logf("tunnels torn down", "count", len(tunnels))
	return nil
}

// IsPortDisablingComplete implements is_port_disabling_complete: true
// once the expected PortDisable on (h, port) has been observed via
// AckPortDisabled.
func (o *Ops) IsPortDisablingComplete(h ilcore.ComponentHandle, port int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.expectedDisc[expectedPortKey{h, port}]
}

// IsPortEnablingComplete implements is_port_enabling_complete.
func (o *Ops) IsPortEnablingComplete(h ilcore.ComponentHandle, port int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.expectedEna[expectedPortKey{h, port}]
}

// IsTunnelDisablingComplete reports whether both ends of tunnel tid
// have acknowledged PortDisable.
func (o *Ops) IsTunnelDisablingComplete(tid int) bool {
	t, ok := o.tunnelByID(tid)
	if !ok {
		return false
	}
	return o.IsPortDisablingComplete(t.OutHandle, t.OutPort) && o.IsPortDisablingComplete(t.InHandle, t.InPort)
}

// IsTunnelEnablingComplete reports whether both ends of tunnel tid have
// acknowledged PortEnable.
func (o *Ops) IsTunnelEnablingComplete(tid int) bool {
	t, ok := o.tunnelByID(tid)
	if !ok {
		return false
	}
	return o.IsPortEnablingComplete(t.OutHandle, t.OutPort) && o.IsPortEnablingComplete(t.InHandle, t.InPort)
}

// AckPortDisabled / AckPortEnabled clear one outstanding port
// acknowledgment, called by the graph when it observes the matching
// OmxPortDisabled/OmxPortEnabled event.
func (o *Ops) AckPortDisabled(h ilcore.ComponentHandle, port int) {
	o.mu.Lock()
	delete(o.expectedDisc, expectedPortKey{h, port})
	o.mu.Unlock()
}

func (o *Ops) AckPortEnabled(h ilcore.ComponentHandle, port int) {
	o.mu.Lock()
	delete(o.expectedEna, expectedPortKey{h, port})
	o.mu.Unlock()
}

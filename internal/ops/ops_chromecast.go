// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// DisableComponentPorts / EnableComponentPorts drive the chromecast
// variant's single source/sink component's own ports directly (spec
// section 4.5: "does not setup internal tunnels; it drives a single
// source/sink component"), rather than a tunnel pair's two ends.
func (o *Ops) DisableComponentPorts(ctx context.Context) error {
	h, ok := o.soleHandle()
	if !ok {
		return nil
	}
	o.mu.Lock()
	o.expectedDisc[expectedPortKey{h, 0}] = true
	o.mu.Unlock()
	if err := o.core.SendCommand(ctx, h, ilcore.CommandPortDisable, 0); err != nil {
		return o.fail(fmt.Errorf("disable component ports: %w", err))
	}
	return nil
}

func (o *Ops) EnableComponentPorts(ctx context.Context) error {
	h, ok := o.soleHandle()
	if !ok {
		return nil
	}
	o.mu.Lock()
	o.expectedEna[expectedPortKey{h, 0}] = true
	o.mu.Unlock()
	if err := o.core.SendCommand(ctx, h, ilcore.CommandPortEnable, 0); err != nil {
		return o.fail(fmt.Errorf("enable component ports: %w", err))
	}
	return nil
}

// IsComponentPortDisablingComplete reports whether the single
// component's port-disable has been acknowledged.
func (o *Ops) IsComponentPortDisablingComplete() bool {
	h, ok := o.soleHandle()
	if !ok {
		return true
	}
	return o.IsPortDisablingComplete(h, 0)
}

func (o *Ops) soleHandle() (ilcore.ComponentHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.handles) == 0 {
		return ilcore.ComponentHandle{}, false
	}
	return o.handles[0], true
}

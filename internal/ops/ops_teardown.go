// SPDX-License-Identifier: MIT

package ops

import (
	"context"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// DestroyGraph issues OMX_FreeHandle on every handle (spec section 8,
// testable property 3: exactly one FreeHandle per GetHandle before
// Unloaded). Failures are logged, not propagated: by the time this
// runs the graph is already on its way to Unloaded and there is no
// useful recovery from a partial free.
func (o *Ops) DestroyGraph(ctx context.Context) error {
	o.mu.Lock()
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	o.handles = nil
	o.mu.Unlock()

	for _, h := range handles {
		if err := o.core.FreeHandle(ctx, h); err != nil {
			o.logf("free handle failed", "handle", h.String(), "error", err)
		}
	}
	if o.adapter != nil {
		o.adapter.Close()
	}
	o.logf("graph destroyed", "freed", len(handles))
	return nil
}

// DestroyComp frees a single handle by its index in the ordered list,
// mirroring tizgraphops.hpp's do_destroy_comp.
func (o *Ops) DestroyComp(ctx context.Context, idx int) error {
	o.mu.Lock()
	if idx < 0 || idx >= len(o.handles) {
		o.mu.Unlock()
		return nil
	}
	h := o.handles[idx]
	o.handles = append(o.handles[:idx:idx], o.handles[idx+1:]...)
	o.mu.Unlock()

	if err := o.core.FreeHandle(ctx, h); err != nil {
		return o.fail(err)
	}
	return nil
}

// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// EnableAutoDetect turns on format auto-detection on the source
// handle's output port (spec section 4.5's Auto-detecting submachine:
// "enter by enabling auto-detection on the source handle (port 0)").
func (o *Ops) EnableAutoDetect(ctx context.Context) error {
	o.mu.Lock()
	handles := o.handles
	o.mu.Unlock()
	if len(handles) == 0 {
		return nil
	}
	source := handles[0]
	if err := o.core.SetParameter(ctx, source, ilcore.IndexTizoniaParamAutoDetection, 0, true); err != nil {
		return o.fail(fmt.Errorf("enable auto-detect: %w", err))
	}
	return nil
}

// IsFormatNotDetected reports whether the given error code is the
// recoverable "couldn't identify the stream" case the Auto-detecting
// submachine retries on, rather than the generic fatal-error path.
func (o *Ops) IsFormatNotDetected(code ilcore.ErrorCode) bool {
	return code == ilcore.ErrorFormatNotDetected
}

// LoadDecoderTail is the first entry action of the Updating-graph
// submachine (spec section 4.5), run once auto-detection has identified
// the stream. It logs the prober's last container/coding result and
// creates no components: the tail is whatever handles beyond the
// source the graph already holds from Load.
func (o *Ops) LoadDecoderTail(ctx context.Context) error {
	o.mu.Lock()
	result := o.lastProbe
	o.mu.Unlock()
	o.logf("decoder tail loaded", "container", result.Container, "coding", result.Coding.String())
	return nil
}

// ConfigureDecoderTail applies the probed codec parameters to the
// newly loaded tail components.
func (o *Ops) ConfigureDecoderTail(ctx context.Context) error {
	return o.Configure(ctx)
}

func (o *Ops) tailHandles() []ilcore.ComponentHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.handles) < 2 {
		return nil
	}
	return append([]ilcore.ComponentHandle(nil), o.handles[1:]...)
}

// SetupTail drives the tail components (every handle after the
// source) Loaded->Idle. It does not set up or enable the tunnel
// connecting them to the still-Executing source.
func (o *Ops) SetupTail(ctx context.Context) error {
	return o.issueStateSetHandles(ctx, o.tailHandles(), ilcore.StateIdle)
}

// ExecuteTail drives the tail components Idle->Executing once the
// connecting tunnel is enabled, completing the graph update.
func (o *Ops) ExecuteTail(ctx context.Context) error {
	return o.issueStateSetHandles(ctx, o.tailHandles(), ilcore.StateExecuting)
}

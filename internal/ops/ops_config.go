// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// rendererHandle is the last component in the ordered list: by
// construction (sources first, sinks last) it is always the renderer
// / sink that owns the audio volume config.
func (o *Ops) rendererHandle() (ilcore.ComponentHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.handles) == 0 {
		return ilcore.ComponentHandle{}, false
	}
	return o.handles[len(o.handles)-1], true
}

// clampPercent clamps a signed integer percent to 0..100, the single
// unit spec section 9 standardizes volume_step on.
func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Volume sets the renderer's volume to an absolute value in [0,1] via
// OMX_SetConfig.
func (o *Ops) Volume(ctx context.Context, absolute float64) error {
	h, ok := o.rendererHandle()
	if !ok {
		return nil
	}
	percent := clampPercent(int(absolute*100 + 0.5))
	if err := o.core.SetConfig(ctx, h, ilcore.IndexConfigAudioVolume, percent); err != nil {
		return o.fail(fmt.Errorf("set volume: %w", err))
	}
	o.outbound.OnVolumeAcked(percent)
	return nil
}

// VolumeStep adjusts the renderer's volume by delta signed integer
// percent, clamped to 0..100 (spec section 9's standardized unit).
func (o *Ops) VolumeStep(ctx context.Context, delta int) error {
	h, ok := o.rendererHandle()
	if !ok {
		return nil
	}
	current, err := o.core.GetConfig(ctx, h, ilcore.IndexConfigAudioVolume)
	if err != nil {
		return o.fail(fmt.Errorf("get volume: %w", err))
	}
	currentPercent, _ := current.(int)
	next := clampPercent(currentPercent + delta)
	if err := o.core.SetConfig(ctx, h, ilcore.IndexConfigAudioVolume, next); err != nil {
		return o.fail(fmt.Errorf("step volume: %w", err))
	}
	o.outbound.OnVolumeAcked(next)
	return nil
}

// Mute toggles the renderer's mute config.
func (o *Ops) Mute(ctx context.Context) error {
	h, ok := o.rendererHandle()
	if !ok {
		return nil
	}
	current, _ := o.core.GetConfig(ctx, h, ilcore.IndexConfigAudioMute)
	muted, _ := current.(bool)
	if err := o.core.SetConfig(ctx, h, ilcore.IndexConfigAudioMute, !muted); err != nil {
		return o.fail(fmt.Errorf("mute: %w", err))
	}
	return nil
}

// Seek jumps playback to an absolute position via OMX_SetConfig on the
// renderer (spec section 4.1's seek(pos) upward call).
func (o *Ops) Seek(ctx context.Context, pos time.Duration) error {
	h, ok := o.rendererHandle()
	if !ok {
		return nil
	}
	if err := o.core.SetConfig(ctx, h, ilcore.IndexTizoniaConfigPlaybackPosition, pos); err != nil {
		return o.fail(fmt.Errorf("seek: %w", err))
	}
	return nil
}

// SetMute sets an explicit mute state, used by the tunnel-reconfigure
// submachine (spec section 4.5 S5: mute renderer before reconfiguring,
// unmute on exit).
func (o *Ops) SetMute(ctx context.Context, muted bool) error {
	h, ok := o.rendererHandle()
	if !ok {
		return nil
	}
	if err := o.core.SetConfig(ctx, h, ilcore.IndexConfigAudioMute, muted); err != nil {
		return o.fail(fmt.Errorf("set mute %v: %w", muted, err))
	}
	return nil
}

// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// StoreConfig buffers a Load/Execute event's configuration for the
// next action to consume (spec section 4.4, do_store_config).
func (o *Ops) StoreConfig(cfg *events.GraphConfig) {
	o.mu.Lock()
	o.config = cfg
	if cfg != nil {
		o.playlistIdx = int(cfg.CurrentIndex)
	}
	o.mu.Unlock()
}

// StoreSkip buffers the requested playlist jump; a zero offset means
// "use the default" (tizgraphops.hpp SKIP_DEFAULT_VALUE).
func (o *Ops) StoreSkip(jump int) {
	if jump == 0 {
		jump = SkipDefault
	}
	o.mu.Lock()
	o.pendingSkip = jump
	o.mu.Unlock()
}

// StorePosition buffers a reported playback position (spec section
// 4.1's position(value) external event — a pure buffering call, unlike
// Seek which issues an immediate OMX_SetConfig).
func (o *Ops) StorePosition(pos time.Duration) {
	o.mu.Lock()
	o.pendingSeek = true
	o.pendingPosition = pos
	o.mu.Unlock()
}

// LastPosition returns the most recently buffered playback position.
func (o *Ops) LastPosition() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pendingPosition
}

func (o *Ops) currentURI() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.config == nil || o.playlistIdx < 0 || o.playlistIdx >= len(o.config.URIList) {
		return "", false
	}
	return o.config.URIList[o.playlistIdx], true
}

// Probe inspects the current playlist entry. On success it records
// the container/coding/parameters for Configure to apply; on
// recoverable failure it clears probeOK so the FSM's
// is_probing_result_ok guard fails and the Configuring submachine can
// advance the playlist and retry (spec section 4.4, section 7 kind 4).
func (o *Ops) Probe(ctx context.Context) error {
	uri, ok := o.currentURI()
	if !ok {
		o.mu.Lock()
		o.probeOK = false
		o.mu.Unlock()
		return nil
	}

	result, err := o.prober.Probe(ctx, uri)
	if err != nil {
		o.mu.Lock()
		o.probeOK = false
		o.mu.Unlock()
		o.logf("probe failed, will try next entry", "uri", uri, "error", err)
		return nil // recoverable: not recorded as internal_error
	}

	o.mu.Lock()
	o.lastProbe = result
	o.probeOK = true
	o.mu.Unlock()
	return nil
}

// Configure applies probed parameters to the components (content URI
// on the source, PCM mode on the renderer, codec params in between).
func (o *Ops) Configure(ctx context.Context) error {
	o.mu.Lock()
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	result := o.lastProbe
	uri, _ := o.currentURI()
	o.mu.Unlock()

	if len(handles) == 0 {
		return nil
	}
	source := handles[0]
	if err := o.core.SetParameter(ctx, source, ilcore.IndexParamContentURI, 0, uri); err != nil {
		return o.fail(fmt.Errorf("configure source: %w", err))
	}

	sink := handles[len(handles)-1]
	if err := o.core.SetParameter(ctx, sink, ilcore.IndexParamAudioPcm, 0, struct {
		SampleRate uint32
		Channels   uint32
	}{result.SampleRate, result.Channels}); err != nil {
		return o.fail(fmt.Errorf("configure sink pcm: %w", err))
	}

	for i := 1; i < len(handles)-1; i++ {
		idx := codingIndex(result.Coding)
		if err := o.core.SetParameter(ctx, handles[i], idx, 0, result); err != nil {
			return o.fail(fmt.Errorf("configure component %d: %w", i, err))
		}
	}

	o.logf("components configured", "container", result.Container, "coding", result.Coding.String())
	return nil
}

func codingIndex(c ilcore.Coding) ilcore.Index {
	switch c {
	case ilcore.CodingMP3:
		return ilcore.IndexParamAudioMp3
	case ilcore.CodingAAC:
		return ilcore.IndexParamAudioAac
	case ilcore.CodingVorbis:
		return ilcore.IndexParamAudioVorbis
	case ilcore.CodingFLAC:
		return ilcore.IndexTizoniaParamAudioFlac
	case ilcore.CodingOpus:
		return ilcore.IndexTizoniaParamAudioOpus
	case ilcore.CodingMP2:
		return ilcore.IndexTizoniaParamAudioMp2
	default:
		return ilcore.IndexParamAudioPcm
	}
}

// ConfigureServer / ConfigureStation / ConfigureStream apply the
// HTTP-server graph variant's configuration (spec section 4.5,
// HTTP-server graph).
func (o *Ops) ConfigureServer(ctx context.Context) error {
	o.mu.Lock()
	cfg := o.config
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	o.mu.Unlock()
	if cfg == nil || len(handles) == 0 {
		return nil
	}
	sink := handles[len(handles)-1]
	if err := o.core.SetParameter(ctx, sink, ilcore.IndexParamPortDefinition, 0, struct {
		BufferSeconds uint32
		MaxClients    uint32
	}{cfg.BufferSeconds, cfg.MaxClients}); err != nil {
		return o.fail(fmt.Errorf("configure server: %w", err))
	}
	return nil
}

func (o *Ops) ConfigureStation(ctx context.Context) error {
	o.mu.Lock()
	cfg := o.config
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	o.mu.Unlock()
	if cfg == nil || len(handles) == 0 {
		return nil
	}
	sink := handles[len(handles)-1]
	if err := o.core.SetConfig(ctx, sink, ilcore.IndexConfigMetadataItem, struct {
		Station string
		Genre   string
	}{cfg.StationName, cfg.Genre}); err != nil {
		return o.fail(fmt.Errorf("configure station: %w", err))
	}
	return nil
}

func (o *Ops) ConfigureStream(ctx context.Context) error {
	o.mu.Lock()
	cfg := o.config
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	o.mu.Unlock()
	if cfg == nil || len(handles) == 0 {
		return nil
	}
	source := handles[0]
	if err := o.core.SetParameter(ctx, source, ilcore.IndexParamAudioPcm, 0, struct {
		SampleRate  uint32
		Channels    uint32
		BitrateKbps uint32
	}{cfg.SampleRate, cfg.Channels, cfg.BitrateKbps}); err != nil {
		return o.fail(fmt.Errorf("configure stream: %w", err))
	}
	return nil
}

// Skip advances the playlist cursor by the stored jump (default +1).
func (o *Ops) Skip(ctx context.Context) error {
	o.mu.Lock()
	jump := o.pendingSkip
	if jump == 0 {
		jump = SkipDefault
	}
	o.playlistIdx += jump
	o.pendingSkip = 0
	idx := o.playlistIdx
	o.mu.Unlock()

	o.logf("playlist cursor advanced", "jump", jump, "index", idx)
	return nil
}

// EndOfPlay is a no-op action: its only purpose is to be named in the
// FSM's action sequence at the point the is_end_of_play guard already
// fired, mirroring tizgraphops.hpp's do_end_of_play.
func (o *Ops) EndOfPlay() {}

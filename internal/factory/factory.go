// SPDX-License-Identifier: MIT

// Package factory picks a concrete graph variant and component list
// from a probed URI (spec section 4.1 item 6), mirroring
// tizgraphfactory.cpp's create()/coding_type() switch over OMX
// container/coding type.
package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tizonia-project/tizonia-go/internal/graphfsm"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/ops"
	"github.com/tizonia-project/tizonia-go/internal/probe"
)

// Plan is what the factory decides for one URI: which graph variant
// to build, its Hooks traits, and the component/tunnel specs its ops
// layer should be constructed with.
type Plan struct {
	Variant graphfsm.Variant
	Hooks   graphfsm.Hooks
	Specs   []ops.ComponentSpec
	Tunnels []ops.TunnelSpec
	Coding  string
}

// decoderGraph is a plain decoder topology: file_reader -> audio_decoder
// -> audio_renderer, tunnelled 0->1->2.
func decoderGraph(sourceRole, decoderRole string, sourceName, decoderName string) ([]ops.ComponentSpec, []ops.TunnelSpec) {
	specs := []ops.ComponentSpec{
		{Role: sourceRole, Name: sourceName},
		{Role: decoderRole, Name: decoderName},
		{Role: "audio_renderer.pcm", Name: "OMX.Aratelia.audio_renderer.pcm"},
	}
	tunnels := []ops.TunnelSpec{
		{OutComponent: 0, OutPort: 0, InComponent: 1, InPort: 0},
		{OutComponent: 1, OutPort: 1, InComponent: 2, InPort: 0},
	}
	return specs, tunnels
}

// Create probes uri and picks the matching decoder graph plan,
// grounded on tizgraphfactory.cpp's create(): one OMX_PortDomainAudio
// branch per audio_coding_type, with the FLAC/ogg-container branch
// further split on file extension the way the original inspects
// boost::filesystem::path's extension().
func Create(ctx context.Context, uri string, prober probe.Prober) (Plan, probe.Result, error) {
	result, err := prober.Probe(ctx, uri)
	if err != nil {
		return Plan{}, probe.Result{}, fmt.Errorf("factory: probe %s: %w", uri, err)
	}

	var specs []ops.ComponentSpec
	var tunnels []ops.TunnelSpec
	var coding string

	switch result.Coding {
	case ilcore.CodingMP2:
		specs, tunnels = decoderGraph("file_reader.binary", "audio_decoder.mp2",
			"OMX.Aratelia.file_reader.binary", "OMX.Aratelia.audio_decoder.mpeg")
		coding = "mp2"
	case ilcore.CodingMP3:
		specs, tunnels = decoderGraph("file_reader.binary", "audio_decoder.mp3",
			"OMX.Aratelia.file_reader.binary", "OMX.Aratelia.audio_decoder.mp3")
		coding = "mp3"
	case ilcore.CodingAAC:
		specs, tunnels = decoderGraph("file_reader.binary", "audio_decoder.aac",
			"OMX.Aratelia.file_reader.binary", "OMX.Aratelia.audio_decoder.aac")
		coding = "aac"
	case ilcore.CodingOpus:
		specs, tunnels = decoderGraph("file_reader.binary", "audio_decoder.opus",
			"OMX.Aratelia.file_reader.binary", "OMX.Aratelia.audio_decoder.opusfile.opus")
		coding = "opus"
	case ilcore.CodingFLAC:
		if oggExtension(uri) {
			specs, tunnels = decoderGraph("container_demuxer.ogg", "audio_decoder.flac",
				"OMX.Aratelia.container_demuxer.ogg", "OMX.Aratelia.audio_decoder.flac")
			coding = "oggflac"
		} else {
			specs, tunnels = decoderGraph("file_reader.binary", "audio_decoder.flac",
				"OMX.Aratelia.file_reader.binary", "OMX.Aratelia.audio_decoder.flac")
			coding = "flac"
		}
	case ilcore.CodingVorbis:
		specs, tunnels = decoderGraph("container_demuxer.ogg", "audio_decoder.vorbis",
			"OMX.Aratelia.container_demuxer.ogg", "OMX.Aratelia.audio_decoder.vorbis")
		coding = "vorbis"
	case ilcore.CodingPCM:
		specs, tunnels = decoderGraph("file_reader.binary", "audio_decoder.pcm",
			"OMX.Aratelia.file_reader.binary", "OMX.Aratelia.audio_decoder.pcm")
		coding = "pcm"
	default:
		return Plan{}, result, fmt.Errorf("factory: no graph for coding %s (uri %s)", result.Coding, uri)
	}

	return Plan{
		Variant: graphfsm.VariantDecoder,
		Hooks:   graphfsm.StaticHooks{},
		Specs:   specs,
		Tunnels: tunnels,
		Coding:  coding,
	}, result, nil
}

// oggExtension reports whether uri's file extension names an Ogg
// container (".oga"/".ogg"), the same test tizgraphfactory.cpp applies
// to disambiguate a FLAC-in-Ogg stream from a bare FLAC file.
func oggExtension(uri string) bool {
	ext := strings.ToLower(filepath.Ext(uri))
	return ext == ".oga" || ext == ".ogg"
}

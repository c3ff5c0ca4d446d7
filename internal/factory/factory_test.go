package factory

import (
	"context"
	"testing"

	"github.com/tizonia-project/tizonia-go/internal/graphfsm"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
	"github.com/tizonia-project/tizonia-go/internal/probe"
)

func TestCreateMP3(t *testing.T) {
	prober := probe.StaticProber{Result: probe.Result{Coding: ilcore.CodingMP3}}

	plan, _, err := Create(context.Background(), "song.mp3", prober)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if plan.Variant != graphfsm.VariantDecoder {
		t.Errorf("variant = %v, want VariantDecoder", plan.Variant)
	}
	if plan.Coding != "mp3" {
		t.Errorf("coding = %q, want mp3", plan.Coding)
	}
	if len(plan.Specs) != 3 {
		t.Fatalf("specs = %d, want 3 (source, decoder, renderer)", len(plan.Specs))
	}
	if len(plan.Tunnels) != 2 {
		t.Fatalf("tunnels = %d, want 2", len(plan.Tunnels))
	}
}

func TestCreateFLACPicksOggDemuxerByExtension(t *testing.T) {
	prober := probe.StaticProber{Result: probe.Result{Coding: ilcore.CodingFLAC}}

	plan, _, err := Create(context.Background(), "album.oga", prober)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if plan.Coding != "oggflac" {
		t.Errorf("coding = %q, want oggflac", plan.Coding)
	}
	if plan.Specs[0].Role != "container_demuxer.ogg" {
		t.Errorf("source role = %q, want container_demuxer.ogg", plan.Specs[0].Role)
	}
}

func TestCreateFLACPlainFile(t *testing.T) {
	prober := probe.StaticProber{Result: probe.Result{Coding: ilcore.CodingFLAC}}

	plan, _, err := Create(context.Background(), "album.flac", prober)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if plan.Coding != "flac" {
		t.Errorf("coding = %q, want flac", plan.Coding)
	}
	if plan.Specs[0].Role != "file_reader.binary" {
		t.Errorf("source role = %q, want file_reader.binary", plan.Specs[0].Role)
	}
}

func TestCreateVorbisAlwaysUsesOggDemuxer(t *testing.T) {
	prober := probe.StaticProber{Result: probe.Result{Coding: ilcore.CodingVorbis}}

	plan, _, err := Create(context.Background(), "album.vorbis", prober)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if plan.Specs[0].Role != "container_demuxer.ogg" {
		t.Errorf("source role = %q, want container_demuxer.ogg", plan.Specs[0].Role)
	}
}

func TestCreateUnknownCodingErrors(t *testing.T) {
	prober := probe.StaticProber{Result: probe.Result{Coding: ilcore.Coding(999)}}

	_, _, err := Create(context.Background(), "mystery.bin", prober)
	if err == nil {
		t.Fatal("expected error for unknown coding")
	}
}

func TestCreatePropagatesProbeError(t *testing.T) {
	wantErr := context.DeadlineExceeded
	prober := probe.StaticProber{Err: wantErr}

	_, _, err := Create(context.Background(), "song.mp3", prober)
	if err == nil {
		t.Fatal("expected error when probe fails")
	}
}

func TestCreateTunnelWiring(t *testing.T) {
	prober := probe.StaticProber{Result: probe.Result{Coding: ilcore.CodingAAC}}

	plan, _, err := Create(context.Background(), "song.aac", prober)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// file_reader(0) -> audio_decoder(1) -> audio_renderer(2)
	if plan.Tunnels[0].OutComponent != 0 || plan.Tunnels[0].InComponent != 1 {
		t.Errorf("first tunnel = %+v, want 0->1", plan.Tunnels[0])
	}
	if plan.Tunnels[1].OutComponent != 1 || plan.Tunnels[1].InComponent != 2 {
		t.Errorf("second tunnel = %+v, want 1->2", plan.Tunnels[1])
	}
}

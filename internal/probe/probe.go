// SPDX-License-Identifier: MIT

// Package probe implements the stream-probing hook (spec section
// 4.4, operation "probe"): a read-only inspection of a content URI
// that determines container, coding, and codec parameters before the
// decoder/renderer tail of a graph is configured.
package probe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// Result is what a successful probe learns about a URI.
type Result struct {
	Container  string
	Coding     ilcore.Coding
	SampleRate uint32
	Channels   uint32
	BitrateKbps uint32
	MimeType   string
	Metadata   []ilcore.MetadataItem
}

// Prober inspects a URI and reports what it found, or a non-nil error
// for a recoverable probe failure (spec section 7, kind 4): the caller
// (ops.Probe) is expected to treat any error here as "try the next
// playlist entry", not as a fatal graph error.
type Prober interface {
	Probe(ctx context.Context, uri string) (Result, error)
}

// LocalFileProber probes file:// and bare-path URIs using ID3/Vorbis/
// FLAC tag metadata (github.com/dhowden/tag) to recover container,
// coding and metadata. It has no opinion about sample rate/channels
// beyond what tag exposes via format-specific fields, so those default
// to the values already configured on the graph unless overridden.
type LocalFileProber struct {
	DefaultSampleRate uint32
	DefaultChannels   uint32
}

func (p LocalFileProber) Probe(ctx context.Context, uri string) (Result, error) {
	path := strings.TrimPrefix(uri, "file://")

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", uri, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: read tags: %w", uri, err)
	}

	coding, container := codingFromFormat(m.FileType())

	res := Result{
		Container:  container,
		Coding:     coding,
		SampleRate: p.DefaultSampleRate,
		Channels:   p.DefaultChannels,
	}

	appendMeta(&res, "title", m.Title())
	appendMeta(&res, "artist", m.Artist())
	appendMeta(&res, "album", m.Album())
	appendMeta(&res, "genre", m.Genre())

	return res, nil
}

func appendMeta(r *Result, key, value string) {
	if value == "" {
		return
	}
	r.Metadata = append(r.Metadata, ilcore.MetadataItem{Key: key, Value: value})
}

func codingFromFormat(ft tag.FileType) (ilcore.Coding, string) {
	switch ft {
	case tag.MP3:
		return ilcore.CodingMP3, "mp3"
	case tag.FLAC:
		return ilcore.CodingFLAC, "flac"
	case tag.OGG:
		return ilcore.CodingVorbis, "ogg"
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return ilcore.CodingAAC, "mp4"
	default:
		return ilcore.CodingAny, string(ft)
	}
}

// StaticProber always returns a fixed Result or Err; used by tests and
// by graph variants (HTTP-server auto-detect) whose real detection
// happens through OmxFormatDetected/OmxPortSettings instead of a
// pre-flight probe.
type StaticProber struct {
	Result Result
	Err    error
}

func (p StaticProber) Probe(ctx context.Context, uri string) (Result, error) {
	return p.Result, p.Err
}

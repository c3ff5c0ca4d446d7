// SPDX-License-Identifier: MIT

// Package events defines the closed set of events that flow through a
// graph's command queue (spec section 4.1): external API calls, OMX
// callback-adapter translations, and internal synthetic events
// synthesized by the FSM or dispatcher itself.
package events

import (
	"fmt"
	"time"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// Kind discriminates the Event tagged union.
type Kind int

const (
	// External events.
	KindLoad Kind = iota
	KindExecute
	KindPause
	KindStop
	KindUnload
	KindSkip
	KindSeek
	KindVolume
	KindVolumeStep
	KindMute
	KindPosition

	// OMX callback events.
	KindOmxTrans
	KindOmxPortDisabled
	KindOmxPortEnabled
	KindOmxPortFlushed
	KindOmxPortSettings
	KindOmxIndexSetting
	KindOmxFormatDetected
	KindOmxEos
	KindOmxErr
	KindOmxEvt

	// Internal synthetic events.
	KindConfigured
	KindSkipped
	KindAutoDetected
	KindGraphUpdated
	KindTunnelReconfigured
	KindErr
	KindTimer
)

func (k Kind) String() string {
	names := [...]string{
		"Load", "Execute", "Pause", "Stop", "Unload", "Skip", "Seek",
		"Volume", "VolumeStep", "Mute", "Position",
		"OmxTrans", "OmxPortDisabled", "OmxPortEnabled", "OmxPortFlushed",
		"OmxPortSettings", "OmxIndexSetting", "OmxFormatDetected", "OmxEos",
		"OmxErr", "OmxEvt",
		"Configured", "Skipped", "AutoDetected", "GraphUpdated",
		"TunnelReconfigured", "Err", "Timer",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return fmt.Sprintf("unknown(%d)", int(k))
	}
	return names[k]
}

// GraphConfig mirrors spec section 3 "Graph configuration": the union
// of options any graph variant may recognize. Unused fields for a
// given variant are left zero.
type GraphConfig struct {
	URIList      []string
	CurrentIndex uint32
	Shuffle      bool

	StationName string
	Genre       string
	BitrateKbps uint32
	SampleRate  uint32
	Channels    uint32

	ServiceCredentials map[string]string
	PlaylistSelector   string

	BufferSeconds uint32
	MaxClients    uint32

	InitialVolumePercent uint32
	StartPaused          bool
}

// Event is the tagged union dispatched through a graph's queue.
type Event struct {
	Kind Kind

	// External event payloads.
	Config      *GraphConfig
	SkipOffset  int
	SeekPos     time.Duration
	VolumeAbs   float64
	VolumeDelta int
	PositionVal time.Duration

	// OMX callback payloads.
	Handle      ilcore.ComponentHandle
	ReachedStat ilcore.StateID
	Port        int
	Index       ilcore.Index
	Flags       int
	RawCode     int
	Data1       int
	Data2       int
	RawData     any
	Err         *ilcore.Err

	// Internal synthetic payloads.
	ErrCode ilcore.ErrorCode
	ErrMsg  string
	TimerID int

	// KillThread, when true, tells the dispatcher to finish processing
	// this event and then exit its loop (spec section 4.2).
	KillThread bool
}

// ErrorCode returns the error code carried by this event, whichever of
// the two payload shapes produced it: a raw OMX callback's Err, or a
// synthetic internal event's ErrCode field.
func (e Event) ErrorCode() ilcore.ErrorCode {
	if e.Err != nil {
		return e.Err.Code
	}
	return e.ErrCode
}

func (e Event) String() string {
	return fmt.Sprintf("%s{handle=%s port=%d}", e.Kind, e.Handle, e.Port)
}

// Kill builds the sentinel command that terminates a dispatcher loop.
func Kill() Event { return Event{KillThread: true} }

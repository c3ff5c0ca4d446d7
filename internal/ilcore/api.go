// SPDX-License-Identifier: MIT

package ilcore

import "context"

// Index identifies an OMX IL parameter/config structure. Only the
// subset the core recognizes or passes through is named; everything
// else flows as an opaque payload.
type Index int

const (
	IndexParamPortDefinition Index = iota
	IndexParamContentURI
	IndexParamAudioPcm
	IndexParamAudioMp3
	IndexParamAudioAac
	IndexParamAudioVorbis
	IndexTizoniaParamAudioOpus
	IndexTizoniaParamAudioFlac
	IndexTizoniaParamAudioMp2
	IndexTizoniaParamBufferPreAnnouncementsMode
	IndexConfigMetadataItemCount
	IndexConfigMetadataItem
	IndexConfigAudioVolume
	IndexConfigAudioMute
	IndexTizoniaParamAutoDetection
	IndexTizoniaConfigPlaybackPosition
)

// MetadataItem is one (key, value) pair surfaced by
// OMX_IndexConfigMetadataItem.
type MetadataItem struct {
	Key   string
	Value string
}

// Command is the subset of OMX_COMMANDTYPE the core issues.
type Command int

const (
	CommandStateSet Command = iota
	CommandPortDisable
	CommandPortEnable
	CommandFlush
	CommandMarkBuffer
)

// EventHandler, EmptyBufferDone and FillBufferDone are the three OMX
// IL callback trampolines registered at OMX_GetHandle. Implementations
// must never block and must never call back into ILCore.
type EventHandler func(h ComponentHandle, event RawEvent)
type EmptyBufferDone func(h ComponentHandle, port int)
type FillBufferDone func(h ComponentHandle, port int)

// RawEventKind enumerates the raw OMX_EVENTTYPE values the adapter
// translates into typed internal events (spec section 4.1).
type RawEventKind int

const (
	EventCmdComplete RawEventKind = iota
	EventError
	EventPortSettingsChanged
	EventBufferFlag // EOS carrier
	EventIndexSettingChanged
	EventFormatDetected
	EventOther
)

// RawEvent is the untyped payload delivered to EventHandler, shaped
// like the (event, nData1, nData2, pEventData) OMX callback arguments.
type RawEvent struct {
	Kind RawEventKind

	// For EventCmdComplete: Data1 is the Command, Data2 is the
	// resulting StateID or port index depending on Command.
	Data1 int
	Data2 int

	Port  int
	Index Index
	Err   *Err

	// Set only for EventBufferFlag: OMX_BUFFERFLAG_EOS and friends.
	Flags int
}

// Callbacks bundles the three trampolines registered for a component.
type Callbacks struct {
	OnEvent           EventHandler
	OnEmptyBufferDone EmptyBufferDone
	OnFillBufferDone  FillBufferDone
}

// ILCore is the OMX IL 1.2 C API surface the core depends on (spec
// section 6, Downward interfaces). GetHandle/FreeHandle/SetupTunnel/
// TeardownTunnel/{Get,Set}Parameter/{Get,Set}Config/GetState are
// synchronous; SendCommand is asynchronous and completes via a later
// EventCmdComplete delivered through Callbacks.OnEvent.
type ILCore interface {
	GetHandle(ctx context.Context, role, name string, cb Callbacks) (ComponentHandle, error)
	FreeHandle(ctx context.Context, h ComponentHandle) error

	SendCommand(ctx context.Context, h ComponentHandle, cmd Command, param int) error

	GetParameter(ctx context.Context, h ComponentHandle, idx Index, port int) (any, error)
	SetParameter(ctx context.Context, h ComponentHandle, idx Index, port int, value any) error
	GetConfig(ctx context.Context, h ComponentHandle, idx Index) (any, error)
	SetConfig(ctx context.Context, h ComponentHandle, idx Index, value any) error
	GetExtensionIndex(ctx context.Context, h ComponentHandle, name string) (Index, error)

	// GetMetadataItem mirrors OMX_GetConfig(OMX_IndexConfigMetadataItem)
	// with the nMetadataItemIndex field pre-set to itemIndex: the one
	// OMX config query whose result depends on an input field rather
	// than only on the index, so it gets its own method instead of
	// overloading GetConfig's single-value shape.
	GetMetadataItem(ctx context.Context, h ComponentHandle, itemIndex int) (MetadataItem, error)

	SetupTunnel(ctx context.Context, out ComponentHandle, outPort int, in ComponentHandle, inPort int) error
	TeardownTunnel(ctx context.Context, out ComponentHandle, outPort int, in ComponentHandle, inPort int) error

	GetState(ctx context.Context, h ComponentHandle) (StateID, error)
}

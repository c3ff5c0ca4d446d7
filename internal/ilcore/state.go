// SPDX-License-Identifier: MIT

// Package ilcore models the OMX IL 1.2 data plane the playback graph
// engine is built on: component handles, ports, tunnels, and the
// lifecycle state-id space, plus the OMX IL C API surface as a Go
// interface so the engine can be driven against a fake in tests.
//
// Nothing in this package renders audio, parses bitstreams, or
// implements a codec. It is the thin boundary the rest of the module
// calls through, mirroring the "external collaborator" component API
// the core consumes (OMX_GetHandle, SendCommand, SetParameter, ...).
package ilcore

import "fmt"

// StateID is the OMX 1.2 lifecycle state, extended with the
// transitional sub-states the core's FSM observes while outstanding
// async work (buffer alloc, port disable, ...) completes.
type StateID int

const (
	StateInvalid StateID = iota
	StateLoaded
	StateIdle
	StateExecuting
	StatePause
	StateWaitForResources
	StateLoadedToIdle
	StateIdleToLoaded
	StateIdleToExecuting
	StateExecutingToIdle
	StatePauseToIdle
)

func (s StateID) String() string {
	switch s {
	case StateLoaded:
		return "Loaded"
	case StateIdle:
		return "Idle"
	case StateExecuting:
		return "Executing"
	case StatePause:
		return "Pause"
	case StateWaitForResources:
		return "WaitForResources"
	case StateLoadedToIdle:
		return "LoadedToIdle"
	case StateIdleToLoaded:
		return "IdleToLoaded"
	case StateIdleToExecuting:
		return "IdleToExecuting"
	case StateExecutingToIdle:
		return "ExecutingToIdle"
	case StatePauseToIdle:
		return "PauseToIdle"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsMainState reports whether s is one of the five OMX 1.2 main states
// (as opposed to one of the transitional sub-states).
func (s StateID) IsMainState() bool {
	switch s {
	case StateLoaded, StateIdle, StateExecuting, StatePause, StateWaitForResources:
		return true
	default:
		return false
	}
}

// PortDirection is the data-flow direction of a Port.
type PortDirection int

const (
	DirInput PortDirection = iota
	DirOutput
)

func (d PortDirection) String() string {
	if d == DirOutput {
		return "output"
	}
	return "input"
}

// Domain is the media domain a Port carries.
type Domain int

const (
	DomainAudio Domain = iota
	DomainVideo
	DomainOther
)

// Coding identifies the coding type of a port's buffers. CodingAny is
// used by a tunnel end that declares "unused" to mean "accept anything
// the other end offers".
type Coding int

const (
	CodingAny Coding = iota
	CodingPCM
	CodingMP3
	CodingAAC
	CodingVorbis
	CodingFLAC
	CodingOpus
	CodingMP2
)

func (c Coding) String() string {
	switch c {
	case CodingPCM:
		return "pcm"
	case CodingMP3:
		return "mp3"
	case CodingAAC:
		return "aac"
	case CodingVorbis:
		return "vorbis"
	case CodingFLAC:
		return "flac"
	case CodingOpus:
		return "opus"
	case CodingMP2:
		return "mp2"
	default:
		return "any"
	}
}

// PopulationStatus is how many of a port's nBufferCountActual buffers
// have been allocated or registered.
type PopulationStatus int

const (
	Unpopulated PopulationStatus = iota
	PartiallyPopulated
	FullyPopulated
)

// SupplierSide marks which end of a tunnel owns buffer memory.
type SupplierSide int

const (
	SupplierNone SupplierSide = iota
	SupplierOutput
	SupplierInput
)

// PortDefinition is the negotiable shape of a Port.
type PortDefinition struct {
	BufferCountActual int
	BufferSize        int
	Enabled           bool
	Supplier          SupplierSide
}

// Port is one numbered endpoint of a component.
type Port struct {
	Index      int
	Direction  PortDirection
	Domain     Domain
	Coding     Coding
	Def        PortDefinition
	Population PopulationStatus

	// TunnelID is the tunnel this port participates in, or -1.
	TunnelID int
}

// Compatible reports whether p and other may be tunneled together: the
// domains must agree and the codings must agree unless one side is
// CodingAny ("unused" meaning "any").
func (p Port) Compatible(other Port) bool {
	if p.Domain != other.Domain {
		return false
	}
	if p.Coding == CodingAny || other.Coding == CodingAny {
		return true
	}
	return p.Coding == other.Coding
}

// Tunnel is an ordered (output port, input port) pair, identified by a
// small integer within the owning graph.
type Tunnel struct {
	ID         int
	OutHandle  ComponentHandle
	OutPort    int
	InHandle   ComponentHandle
	InPort     int
	Supplier   SupplierSide
	Enabled    bool
}

// ComponentHandle is the opaque identifier returned by the IL core for
// a registered component. Handles are never shared between graphs.
type ComponentHandle struct {
	id   uint64
	Role string
	Name string
}

// Valid reports whether h refers to a real, non-zero handle.
func (h ComponentHandle) Valid() bool { return h.id != 0 }

// ComponentHandleForTest builds a ComponentHandle with an explicit
// numeric id. Exported for ILCore implementations (real or fake)
// living in other packages; application code should only ever receive
// handles back from ILCore.GetHandle.
func ComponentHandleForTest(id uint64, role, name string) ComponentHandle {
	return ComponentHandle{id: id, Role: role, Name: name}
}

func (h ComponentHandle) String() string {
	if h.Name != "" {
		return h.Name
	}
	return fmt.Sprintf("handle#%d", h.id)
}

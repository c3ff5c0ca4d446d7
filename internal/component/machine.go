// SPDX-License-Identifier: MIT

// Package component implements the OMX IL component-side state
// machine and kernel behavior the playback graph engine's correctness
// depends on (spec section 4.6): the nine-state machine, SendCommand
// validation, and the cancellation rules for a pending Loaded->Idle
// transition or a pending port disable/enable.
//
// This is specified as an "external collaborator" in spec.md, but the
// graph FSM's guards (is_trans_complete, is_port_disabling_complete,
// ...) only make sense against a component that actually enforces
// these rules, so a reference implementation lives here and backs the
// in-process fake ILCore used throughout the test suite.
package component

import (
	"fmt"
	"sync"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// PortState tracks one port's enabled flag and buffer population
// independently of the component's main lifecycle state.
type PortState struct {
	Enabled    bool
	Population ilcore.PopulationStatus
	Tunneled   bool
	Transition portTransition
}

type portTransition int

const (
	portStable portTransition = iota
	portDisabling
	portEnabling
)

// Machine is a single component's lifecycle state machine plus its
// per-port state. Every method takes the machine's own mutex, so a
// single call is safe from any goroutine; a sequence of calls is not
// atomic (the real graph engine only ever touches it from the worker
// goroutine that owns the graph, so in practice there is never
// contention; the mutex exists for the fake's internal bookkeeping
// from test goroutines issuing commands concurrently with callback
// delivery).
type Machine struct {
	mu    sync.Mutex
	state ilcore.StateID
	ports map[int]*PortState

	// pendingTarget is the main state the current sub-state is
	// transitioning toward (valid only while state is one of the
	// *To* sub-states). After a LoadedToIdle cancellation it holds
	// StateLoadedToIdle, which is never a real target, until
	// CompleteTransition reports the cancellation.
	pendingTarget ilcore.StateID
}

// NewMachine creates a component state machine starting in Loaded
// with the given ports (index -> initial PortState).
func NewMachine(ports map[int]PortState) *Machine {
	m := &Machine{
		state: ilcore.StateLoaded,
		ports: make(map[int]*PortState, len(ports)),
	}
	for idx, ps := range ports {
		cp := ps
		m.ports[idx] = &cp
	}
	return m
}

// State returns the component's current state id.
func (m *Machine) State() ilcore.StateID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Port returns a copy of the named port's state.
func (m *Machine) Port(index int) (PortState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ports[index]
	if !ok {
		return PortState{}, false
	}
	return *p, true
}

func (m *Machine) allPortsUnpopulated(predicate func(*PortState) bool) bool {
	for _, p := range m.ports {
		if predicate(p) && p.Population != ilcore.Unpopulated {
			return false
		}
	}
	return true
}

var legalMainTransition = map[ilcore.StateID]map[ilcore.StateID]bool{
	ilcore.StateLoaded:           {ilcore.StateIdle: true, ilcore.StateWaitForResources: true},
	ilcore.StateIdle:             {ilcore.StateLoaded: true, ilcore.StateExecuting: true, ilcore.StatePause: true},
	ilcore.StateExecuting:        {ilcore.StateIdle: true, ilcore.StatePause: true},
	ilcore.StatePause:            {ilcore.StateIdle: true, ilcore.StateExecuting: true},
	ilcore.StateWaitForResources: {ilcore.StateLoaded: true},
}

// SendCommandStateSet validates and (if legal) begins a StateSet
// command toward target. It returns *ilcore.Err with
// ErrorIncorrectStateTransition / ErrorIncorrectStateOperation on
// rejection, matching spec section 4.6.
func (m *Machine) SendCommandStateSet(target ilcore.StateID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case ilcore.StateLoadedToIdle:
		if target == ilcore.StateLoaded {
			// Cancellation: accepted only if every port that began
			// allocating buffers is now fully unpopulated.
			if !m.allPortsUnpopulated(func(p *PortState) bool { return true }) {
				return &ilcore.Err{Code: ilcore.ErrorIncorrectStateOperation, Msg: "cannot cancel LoadedToIdle: buffers still populated"}
			}
			m.state = ilcore.StateLoaded
			m.pendingTarget = ilcore.StateLoadedToIdle
			return nil
		}
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateTransition, Msg: "transition already in progress"}

	case ilcore.StateIdleToLoaded, ilcore.StateIdleToExecuting, ilcore.StateExecutingToIdle, ilcore.StatePauseToIdle:
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateTransition, Msg: "transition already in progress"}
	}

	if m.state == target {
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateTransition, Msg: "already in requested state"}
	}

	if !legalMainTransition[m.state][target] {
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateTransition, Msg: fmt.Sprintf("%s -> %s is not a legal OMX 1.2 transition", m.state, target)}
	}

	m.pendingTarget = target
	m.state = subStateForPair(m.state, target)
	return nil
}

func subStateForPair(from, to ilcore.StateID) ilcore.StateID {
	switch {
	case from == ilcore.StateLoaded && to == ilcore.StateIdle:
		return ilcore.StateLoadedToIdle
	case from == ilcore.StateIdle && to == ilcore.StateLoaded:
		return ilcore.StateIdleToLoaded
	case from == ilcore.StateIdle && to == ilcore.StateExecuting:
		return ilcore.StateIdleToExecuting
	case from == ilcore.StateExecuting && to == ilcore.StateIdle:
		return ilcore.StateExecutingToIdle
	case from == ilcore.StatePause && to == ilcore.StateIdle:
		return ilcore.StatePauseToIdle
	case from == ilcore.StateExecuting && to == ilcore.StatePause:
		return ilcore.StateExecutingToIdle // sub-state reused; pendingTarget (Pause) is what CompleteTransition honors
	case from == ilcore.StatePause && to == ilcore.StateExecuting:
		return ilcore.StateIdleToExecuting // same
	default:
		return to
	}
}

// CompleteTransition is called by the fake core once the "hardware"
// finishes the async work for the pending sub-state, moving the
// machine into its target main state named by pendingTarget.
// Executing<->Pause has no distinct *To* sub-state of its own and
// reuses StateExecutingToIdle/StateIdleToExecuting (see
// subStateForPair), so completion must resolve against pendingTarget
// rather than the sub-state's own name, or a Pause request would
// complete into Idle instead. Returns the completion error to report
// on the callback: nil normally, ErrorCommandCanceled (with reached
// Loaded) once after a LoadedToIdle transition was cancelled back to
// Loaded, or ErrorIncorrectStateOperation if nothing is pending.
func (m *Machine) CompleteTransition() (reached ilcore.StateID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case ilcore.StateLoadedToIdle, ilcore.StateIdleToLoaded, ilcore.StateIdleToExecuting, ilcore.StateExecutingToIdle, ilcore.StatePauseToIdle:
		m.state = m.pendingTarget
	default:
		if m.state == ilcore.StateLoaded && m.pendingTarget == ilcore.StateLoadedToIdle {
			m.pendingTarget = ilcore.StateInvalid
			return m.state, &ilcore.Err{Code: ilcore.ErrorCommandCanceled, Msg: "LoadedToIdle cancelled"}
		}
		return m.state, &ilcore.Err{Code: ilcore.ErrorIncorrectStateOperation, Msg: "no transition pending"}
	}
	m.pendingTarget = ilcore.StateInvalid
	return m.state, nil
}

// SendCommandPortDisable validates a PortDisable request. During
// LoadedToIdle it is accepted only for a port that is still fully
// unpopulated; a port with any buffers populated is rejected with
// ErrorIncorrectStateOperation (spec section 4.6).
func (m *Machine) SendCommandPortDisable(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.ports[port]
	if !ok {
		return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown port"}
	}

	if m.state == ilcore.StateLoadedToIdle && p.Population != ilcore.Unpopulated {
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateOperation, Msg: "port already populated, cannot disable to cancel"}
	}

	p.Transition = portDisabling
	return nil
}

// SendCommandPortEnable validates a PortEnable request.
func (m *Machine) SendCommandPortEnable(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.ports[port]
	if !ok {
		return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown port"}
	}
	p.Transition = portEnabling
	return nil
}

// CompletePortDisable finishes a pending port disable: the port
// becomes disabled and fully unpopulated. It does not change the
// component's main state: a pending LoadedToIdle stays pending until a
// separate CompleteTransition call completes it, mirroring two
// separate OMX callbacks arriving in sequence.
func (m *Machine) CompletePortDisable(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ports[port]
	if !ok {
		return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown port"}
	}
	if p.Transition != portDisabling {
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateOperation, Msg: "no disable pending on this port"}
	}
	p.Enabled = false
	p.Population = ilcore.Unpopulated
	p.Transition = portStable
	return nil
}

// CompletePortEnable finishes a pending port enable.
func (m *Machine) CompletePortEnable(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ports[port]
	if !ok {
		return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown port"}
	}
	if p.Transition != portEnabling {
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateOperation, Msg: "no enable pending on this port"}
	}
	p.Enabled = true
	p.Transition = portStable
	return nil
}

// SetPopulation lets a test drive buffer allocation/freeing on a port
// (standing in for UseBuffer/AllocateBuffer/FreeBuffer bookkeeping).
func (m *Machine) SetPopulation(port int, status ilcore.PopulationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ports[port]
	if !ok {
		return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown port"}
	}

	// UseBuffer/AllocateBuffer are rejected on ports that are disabled
	// and not currently transitioning to enabled.
	if status != ilcore.Unpopulated && !p.Enabled && p.Transition != portEnabling {
		return &ilcore.Err{Code: ilcore.ErrorIncorrectStateOperation, Msg: "port disabled, cannot populate buffers"}
	}
	p.Population = status
	return nil
}

// MarkBuffer validates an OMX_CommandMarkBuffer request: accepted only
// in Executing, Paused, or on a currently-Disabled port.
func (m *Machine) MarkBuffer(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == ilcore.StateExecuting || m.state == ilcore.StatePause {
		return nil
	}
	p, ok := m.ports[port]
	if !ok {
		return &ilcore.Err{Code: ilcore.ErrorBadParameter, Msg: "unknown port"}
	}
	if !p.Enabled {
		return nil
	}
	return &ilcore.Err{Code: ilcore.ErrorIncorrectStateOperation, Msg: "MarkBuffer not valid in this state"}
}

// SPDX-License-Identifier: MIT

// Package fsm implements the generic hierarchical state machine engine
// described in spec section 4.5 and section 9's re-architecture
// guidance: a tagged variant of events, a tagged variant of states,
// and a dispatch table keyed by (state, event kind) whose rows carry
// an optional guard, an action sequence, and a next state.
//
// Submachines are ordinary states that own a nested Machine; exit
// pseudo-states synthesize a parent-level event on return. An
// orthogonal AllOk region is modeled as a reserved state name whose
// rows are consulted whenever the active state/submachine has no
// matching row for an event, without disturbing the active state
// otherwise. Deferred events are queued per submachine and replayed
// once that submachine exits.
//
// No library in the example corpus provides this kind of nested,
// guarded state-table dispatch (the pack's state handling is limited
// to simple linear lifecycles), so this is hand-rolled against the
// corpus's general "table + functor" idiom rather than against a
// specific dependency.
package fsm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tizonia-project/tizonia-go/internal/events"
)

// State names a node in a Machine's table, including exit
// pseudo-states (conventionally "<ParentState>.exit") and the
// reserved AllOk orthogonal region.
type State string

// AllOk is the reserved state name for the orthogonal error-catching
// region (spec section 4.5): rows registered under AllOk are tried
// whenever no row matches for the actual current state.
const AllOk State = "AllOk"

// AutoEvent is the reserved event kind for completion transitions: a
// row keyed on (state, AutoEvent) fires immediately after the machine
// settles into state, without waiting for an external event, and the
// machine keeps re-checking for further auto rows until one stops
// matching. This models the source design's anonymous/completion
// transitions (e.g. a probe's immediate good/bad/end-of-play branch),
// which spec section 4.5 describes as bare guard branches with no
// named triggering event.
const AutoEvent events.Kind = -1

// maxAutoChain bounds how many consecutive completion transitions a
// single settle may chain through, guarding against a guard/action
// pair that never stops matching.
const maxAutoChain = 10000

// Guard reports whether a row may fire for ev. A nil Guard always
// passes.
type Guard func(ev events.Event) bool

// Action performs one step of a transition's action sequence. Actions
// run in declaration order; every action runs even if an earlier one
// returns a non-nil error (the error is only logged), and the
// transition still completes (ops methods record
// failures into the graph's sticky internal-error slot themselves, per
// spec section 4.4 — the FSM does not retry or roll back).
type Action func(ev events.Event) error

// Row is one entry of the dispatch table: From+Event identify when it
// applies, Guard (if non-nil) must pass, Actions run in order, and To
// is the resulting state.
type Row struct {
	From    State
	Event   events.Kind
	Guard   Guard
	Actions []Action
	To      State
	Name    string // short label for logging ("configured->executing")
}

// Submachine nests a child Machine under a parent state. ExitEvents
// maps a child state to the synthetic event kind emitted to the
// parent when the child reaches it (spec section 4.5's exit
// pseudo-states). Defer names event kinds that must be queued rather
// than dispatched while this submachine is active, replayed once it
// exits (used by reconfiguring_tunnel_<i>, spec section 4.5).
type Submachine struct {
	Machine    *Machine
	ExitEvents map[State]events.Kind
	Defer      map[events.Kind]bool
}

// Machine is one hierarchical state machine: a top-level graph FSM or
// a nested submachine.
type Machine struct {
	mu sync.Mutex

	name    string
	logger  *slog.Logger
	rows    []Row
	initial State
	current State

	submachines map[State]*Submachine
	activeSub   *Submachine

	deferred []events.Event

	noTransition func(state State, ev events.Event)
	entry        map[State][]Action
}

// New builds a Machine named name (used in log lines), starting at
// initial, dispatching through rows, with submachines attached at the
// states named in subs.
func New(name string, logger *slog.Logger, initial State, rows []Row, subs map[State]*Submachine) *Machine {
	m := &Machine{
		name:        name,
		logger:      logger,
		rows:        rows,
		initial:     initial,
		current:     initial,
		submachines: subs,
		entry:       make(map[State][]Action),
	}
	if subs == nil {
		m.submachines = make(map[State]*Submachine)
	}
	if sub, ok := m.submachines[initial]; ok {
		m.activeSub = sub
	}
	return m
}

// SetEntryActions registers actions that run automatically whenever
// the machine transitions into state s (including the initial state,
// run once by EnterInitial), standing in for the original design's
// implicit "do work on state entry" submachine steps (e.g. issuing a
// port-disable immediately on entering DisablingPorts).
func (m *Machine) SetEntryActions(s State, actions ...Action) {
	m.mu.Lock()
	m.entry[s] = actions
	m.mu.Unlock()
}

// EnterInitial runs the initial state's entry actions and any
// completion transitions they unlock. Call once after construction and
// SetEntryActions calls, before any Dispatch.
func (m *Machine) EnterInitial() error {
	if err := m.runEntry(m.initial, events.Event{}); err != nil {
		return err
	}
	m.settle()
	return nil
}

func (m *Machine) runEntry(s State, ev events.Event) error {
	m.mu.Lock()
	actions := m.entry[s]
	m.mu.Unlock()
	for _, a := range actions {
		if a == nil {
			continue
		}
		if err := a(ev); err != nil {
			m.logf("entry action failed", "state", string(s), "error", err)
		}
	}
	return nil
}

// SetNoTransitionHandler installs a hook called whenever an event has
// no matching row anywhere in the active chain (spec section 4.5: "a
// no_transition trap that logs but does not crash; the event is
// dropped").
func (m *Machine) SetNoTransitionHandler(f func(state State, ev events.Event)) {
	m.mu.Lock()
	m.noTransition = f
	m.mu.Unlock()
}

// State returns the machine's current top-level state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Machine) logf(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, append([]any{"fsm", m.name}, args...)...)
	}
}

// Dispatch feeds ev to the machine: to the active submachine first (if
// any, deferring it instead when the submachine defers that kind). If
// the submachine has no matching row for ev, the event falls through
// to this machine's own table (so an orthogonal AllOk region still
// catches errors while a submachine is active). A submachine reaching
// one of its declared exit states synthesizes the mapped parent event
// and re-enters dispatch at the parent's "<state>.exit" pseudo-state.
func (m *Machine) Dispatch(ev events.Event) error {
	_, err := m.dispatch(ev)
	return err
}

func (m *Machine) dispatch(ev events.Event) (matched bool, err error) {
	m.mu.Lock()
	sub := m.activeSub
	if sub != nil && sub.Defer[ev.Kind] {
		m.deferred = append(m.deferred, ev)
		m.mu.Unlock()
		m.logf("event deferred", "event", ev.Kind.String())
		return true, nil
	}
	m.mu.Unlock()

	if sub != nil {
		subMatched, err := sub.Machine.dispatch(ev)
		if err != nil {
			return subMatched, err
		}
		if subMatched {
			exitKind, isExit := sub.ExitEvents[sub.Machine.State()]
			if !isExit {
				return true, nil
			}
			m.mu.Lock()
			parentState := m.current
			m.activeSub = nil
			m.mu.Unlock()
			synthetic := events.Event{Kind: exitKind}
			if _, err := m.dispatchAt(State(string(parentState)+".exit"), synthetic); err != nil {
				return true, err
			}
			return true, m.drainDeferred()
		}
		// Not handled by the submachine: fall through to this
		// machine's own table (e.g. the AllOk region) below.
	}

	ok, err := m.dispatchAt(m.State(), ev)
	if err != nil {
		return ok, err
	}
	if ok {
		return true, m.drainDeferred()
	}
	return false, nil
}

func (m *Machine) drainDeferred() error {
	m.mu.Lock()
	pending := m.deferred
	m.deferred = nil
	m.mu.Unlock()
	for _, ev := range pending {
		if err := m.Dispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) dispatchAt(state State, ev events.Event) (bool, error) {
	if row, ok := m.matchRow(state, ev); ok {
		return true, m.fire(state, row, ev)
	}
	if state != AllOk {
		if row, ok := m.matchRow(AllOk, ev); ok {
			return true, m.fire(state, row, ev)
		}
	}
	// Absence of a completion-transition row is the normal terminal
	// case for settle(), not an unrecognized external event: never
	// trap it.
	if ev.Kind == AutoEvent {
		return false, nil
	}
	m.mu.Lock()
	trap := m.noTransition
	m.mu.Unlock()
	if trap != nil {
		trap(state, ev)
	} else {
		m.logf("no_transition", "state", string(state), "event", ev.Kind.String())
	}
	return false, nil
}

func (m *Machine) matchRow(state State, ev events.Event) (Row, bool) {
	for _, r := range m.rows {
		if r.From != state || r.Event != ev.Kind {
			continue
		}
		if r.Guard == nil || r.Guard(ev) {
			return r, true
		}
	}
	return Row{}, false
}

func (m *Machine) fire(from State, row Row, ev events.Event) error {
	m.logf("transition", "from", string(from), "event", ev.Kind.String(), "to", string(row.To), "name", row.Name)
	for _, action := range row.Actions {
		if action == nil {
			continue
		}
		if err := action(ev); err != nil {
			m.logf("action failed", "name", row.Name, "error", err)
		}
	}
	m.transitionTo(row.To, ev)
	return nil
}

func (m *Machine) transitionTo(to State, ev events.Event) {
	m.mu.Lock()
	m.current = to
	sub, hasSub := m.submachines[to]
	if hasSub {
		m.activeSub = sub
	} else {
		m.activeSub = nil
	}
	m.mu.Unlock()

	m.runEntry(to, ev)
	if hasSub {
		sub.Machine.Reset(sub.Machine.initial)
	}
	m.settle()
}

// Reset puts the machine back at state s, clears any active
// submachine/deferred-event state, and runs s's entry actions. Used
// when entering a submachine-bearing state and by tests.
func (m *Machine) Reset(s State) {
	m.mu.Lock()
	m.current = s
	m.deferred = nil
	sub, hasSub := m.submachines[s]
	if hasSub {
		m.activeSub = sub
	} else {
		m.activeSub = nil
	}
	m.mu.Unlock()

	m.runEntry(s, events.Event{})
	if hasSub {
		sub.Machine.Reset(sub.Machine.initial)
	}
	m.settle()
}

// settle repeatedly fires any matching AutoEvent row for the current
// state until none matches, chaining completion transitions the way
// the original design's anonymous transitions do.
func (m *Machine) settle() {
	for i := 0; i < maxAutoChain; i++ {
		state := m.State()
		ok, err := m.dispatchAt(state, events.Event{Kind: AutoEvent})
		if err != nil {
			m.logf("auto-advance action failed", "state", string(state), "error", err)
		}
		if !ok {
			return
		}
	}
	m.logf("auto-advance chain exceeded cap, stopping", "state", string(m.State()))
}

// String renders the machine's current position, including any
// active submachine's state, for diagnostics and UI display.
func (m *Machine) String() string {
	m.mu.Lock()
	cur := m.current
	sub := m.activeSub
	m.mu.Unlock()
	if sub == nil {
		return string(cur)
	}
	return fmt.Sprintf("%s/%s", cur, sub.Machine.State())
}

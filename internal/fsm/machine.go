// Package fsm is the state machine behind the save and approve buttons of a
// plan editing session. It only sequences states; the side effects are
// supplied by the caller.
package fsm

import (
	"errors"
	"fmt"
	"sync"
)

type State string

const (
	StateDisabledSaveFirst State = "disabled_save_first"
	StateSaving            State = "saving"
	StateEnabledApprove    State = "enabled_approve"
	StateRefreshing        State = "refreshing"
	StateApproving         State = "approving"
	StateApproved          State = "approved"
	StateErrorStuck        State = "error_stuck"
)

type Event string

const (
	EventDirtyChanges      Event = "DIRTY_CHANGES"
	EventCleanChanges      Event = "CLEAN_CHANGES"
	EventSaveStart         Event = "SAVE_START"
	EventSaveSuccess       Event = "SAVE_SUCCESS"
	EventSaveFailure       Event = "SAVE_FAILURE"
	EventApproveStart      Event = "APPROVE_START"
	EventApproveSuccess    Event = "APPROVE_SUCCESS"
	EventApprovePartial    Event = "APPROVE_PARTIAL"
	EventApproveCancelled  Event = "APPROVE_CANCELLED"
	EventApproveFailure    Event = "APPROVE_FAILURE"
	EventRefreshStart      Event = "REFRESH_START"
	EventRefreshApprovable Event = "REFRESH_APPROVABLE"
	EventRefreshApproved   Event = "REFRESH_APPROVED"
	EventRefreshBlocked    Event = "REFRESH_BLOCKED"
	EventRefreshFailure    Event = "REFRESH_FAILURE"
	EventRetry             Event = "RETRY"
	EventReset             Event = "RESET"
)

var ErrTransitionRejected = errors.New("transition rejected")

type transition struct {
	// from lists the states the event is accepted in; nil accepts any state.
	from []State
	to   State
}

var settled = []State{StateEnabledApprove, StateApproved}

var transitions = map[Event]transition{
	EventDirtyChanges: {
		from: []State{StateDisabledSaveFirst, StateSaving, StateEnabledApprove, StateRefreshing, StateApproving, StateApproved},
		to:   StateDisabledSaveFirst,
	},
	EventCleanChanges: {from: []State{StateDisabledSaveFirst}, to: StateEnabledApprove},

	EventSaveStart:   {from: []State{StateDisabledSaveFirst, StateEnabledApprove, StateApproved}, to: StateSaving},
	EventSaveSuccess: {from: []State{StateSaving}, to: StateEnabledApprove},
	EventSaveFailure: {from: []State{StateSaving}, to: StateErrorStuck},

	EventApproveStart:     {from: []State{StateEnabledApprove}, to: StateApproving},
	EventApproveSuccess:   {from: []State{StateApproving}, to: StateApproved},
	EventApprovePartial:   {from: []State{StateApproving}, to: StateEnabledApprove},
	EventApproveCancelled: {from: []State{StateApproving}, to: StateEnabledApprove},
	EventApproveFailure:   {from: []State{StateApproving}, to: StateErrorStuck},

	EventRefreshStart: {
		from: []State{StateDisabledSaveFirst, StateEnabledApprove, StateApproved, StateRefreshing},
		to:   StateRefreshing,
	},
	EventRefreshApprovable: {from: append([]State{StateRefreshing}, settled...), to: StateEnabledApprove},
	EventRefreshApproved:   {from: append([]State{StateRefreshing}, settled...), to: StateApproved},
	EventRefreshBlocked:    {from: append([]State{StateRefreshing}, settled...), to: StateDisabledSaveFirst},
	EventRefreshFailure:    {from: append([]State{StateRefreshing}, settled...), to: StateErrorStuck},

	EventRetry: {from: []State{StateErrorStuck}, to: StateDisabledSaveFirst},
	EventReset: {to: StateDisabledSaveFirst},
}

// Listener is called after every accepted transition.
type Listener func(from, to State, event Event)

type Machine struct {
	mutex      sync.Mutex
	state      State
	retryCount int
	lastErr    error
	listeners  []Listener
}

func New() *Machine {
	return &Machine{
		state: StateDisabledSaveFirst,
	}
}

func (m *Machine) OnTransition(l Listener) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Machine) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// Fire applies event. It returns false and leaves the state unchanged when
// the event is not accepted in the current state.
func (m *Machine) Fire(event Event) bool {
	return m.fire(event, nil)
}

// Fail fires a failure event and records err as the cause.
func (m *Machine) Fail(event Event, err error) bool {
	return m.fire(event, err)
}

func (m *Machine) fire(event Event, cause error) bool {
	t, ok := transitions[event]
	if !ok {
		return false
	}

	m.mutex.Lock()
	from := m.state
	if t.from != nil && !contains(t.from, from) {
		m.mutex.Unlock()
		return false
	}

	m.state = t.to
	switch {
	case event == EventRetry:
		m.retryCount++
	case t.to == StateEnabledApprove || t.to == StateApproved:
		m.retryCount = 0
		m.lastErr = nil
	}
	if t.to == StateErrorStuck {
		m.lastErr = cause
	}
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mutex.Unlock()

	for _, l := range listeners {
		l(from, t.to, event)
	}
	return true
}

// RetryCount is the number of retries in the current error episode.
func (m *Machine) RetryCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.retryCount
}

// LastError is the failure that moved the machine to error_stuck, if any.
func (m *Machine) LastError() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastErr
}

func (m *Machine) CanSave() bool {
	switch m.State() {
	case StateDisabledSaveFirst, StateEnabledApprove, StateApproved:
		return true
	default:
		return false
	}
}

func (m *Machine) CanApprove() bool {
	return m.State() == StateEnabledApprove
}

func (m *Machine) Busy() bool {
	switch m.State() {
	case StateSaving, StateApproving, StateRefreshing:
		return true
	default:
		return false
	}
}

func (m *Machine) Stuck() bool {
	return m.State() == StateErrorStuck
}

// Label is the approve button caption for the current state.
func (m *Machine) Label() string {
	return Label(m.State())
}

func Label(s State) string {
	switch s {
	case StateDisabledSaveFirst:
		return "Save changes first"
	case StateSaving:
		return "Saving..."
	case StateEnabledApprove:
		return "Approve"
	case StateRefreshing:
		return "Checking status..."
	case StateApproving:
		return "Approving..."
	case StateApproved:
		return "Approved"
	case StateErrorStuck:
		return "Retry"
	default:
		return ""
	}
}

func rejected(event Event, state State) error {
	return fmt.Errorf("%w: %s in state %s", ErrTransitionRejected, event, state)
}

func contains(states []State, s State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

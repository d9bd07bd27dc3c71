package collector

import (
	"fmt"
	"sync"
)

// State is a collector phase.
type State int

const (
	StateDiscovering State = iota // listing a player's recent match IDs
	StateFetching                 // fetching details and timelines
	StateFlushing                 // persisting buffered progress
	StateDone                     // terminal
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "DISCOVERING"
	case StateFetching:
		return "FETCHING"
	case StateFlushing:
		return "FLUSHING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Done is only reachable from Flushing, so every run ends with a flush.
var validTransitions = map[State][]State{
	StateDiscovering: {StateFetching, StateFlushing},
	StateFetching:    {StateDiscovering, StateFlushing},
	StateFlushing:    {StateDiscovering, StateFetching, StateDone},
	StateDone:        {},
}

// StateMachine tracks the current State and rejects invalid transitions.
type StateMachine struct {
	mu        sync.RWMutex
	current   State
	callbacks []func(from, to State)
}

// NewStateMachine starts in StateDiscovering.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateDiscovering}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// OnTransition registers a callback run after every state change.
func (sm *StateMachine) OnTransition(fn func(from, to State)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.callbacks = append(sm.callbacks, fn)
}

// TransitionTo moves to the given state. Moving to the current state is a
// no-op.
func (sm *StateMachine) TransitionTo(to State) error {
	sm.mu.Lock()
	from := sm.current
	if from == to {
		sm.mu.Unlock()
		return nil
	}
	if !canTransition(from, to) {
		sm.mu.Unlock()
		return fmt.Errorf("invalid state transition: %s -> %s", from, to)
	}
	sm.current = to
	callbacks := append([]func(from, to State){}, sm.callbacks...)
	sm.mu.Unlock()

	for _, fn := range callbacks {
		fn(from, to)
	}
	return nil
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

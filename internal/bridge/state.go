// Package bridge is shared by the three input bridges: the connection
// state machine, the fixed-backoff reconnect loop and Host, which owns
// the per-bridge Dispatcher and virtual-display controller.
package bridge

import (
	"errors"
	"sync"
)

// ErrNotReady is returned when forwarding on a bridge that isn't ready.
var ErrNotReady = errors.New("bridge not ready")

type State int

const (
	Disconnected State = iota
	Connecting
	Ready
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	default:
		return "disconnected"
	}
}

// StateMachine tracks one bridge connection. OnChange runs after every
// transition, outside the lock.
type StateMachine struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

func NewStateMachine(onChange func(State)) *StateMachine {
	return &StateMachine{onChange: onChange}
}

func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Set moves to next and reports whether the state changed.
func (m *StateMachine) Set(next State) bool {
	m.mu.Lock()
	changed := m.state != next
	m.state = next
	fn := m.onChange
	m.mu.Unlock()

	if changed && fn != nil {
		fn(next)
	}
	return changed
}

package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition переход между состояниями сессии не предусмотрен
var ErrInvalidTransition = errors.New("invalid session state transition")

// State состояние сессии синхронизации.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateExchanging
	StateResolving
	StateCommitting
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateExchanging:
		return "EXCHANGING"
	case StateResolving:
		return "RESOLVING"
	case StateCommitting:
		return "COMMITTING"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transitions допустимые переходы; прерывание возможно только до фиксации.
var transitions = map[State][]State{
	StateIdle:        {StateNegotiating},
	StateNegotiating: {StateExchanging, StateAborted},
	StateExchanging:  {StateResolving, StateAborted},
	StateResolving:   {StateCommitting, StateAborted},
	StateCommitting:  {StateIdle},
	StateAborted:     {StateIdle},
}

// CanTransition сообщает, допустим ли переход from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine конечный автомат сессии.
type machine struct {
	history []State
	state   State
	mu      sync.Mutex
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *machine) to(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}

// reset возвращает автомат в IDLE перед новой сессией.
func (m *machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateIdle
	m.history = m.history[:0]
}

func (m *machine) path() []State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]State(nil), m.history...)
}

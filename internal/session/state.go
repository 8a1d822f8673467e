// Package session models a user's sign-in state as an explicit value that
// moves through one-way transitions and notifies registered observers.
package session

import (
	"errors"
	"fmt"
	"sync"

	"fanliga/internal/core"
)

type Kind int

const (
	Anonymous Kind = iota
	Authenticating
	Authenticated
	Failed
)

func (k Kind) String() string {
	switch k {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is immutable; transitions produce a new value.
type State struct {
	Kind    Kind
	Profile core.Profile // set only when Authenticated
	Err     error        // set only when Failed
}

func (s State) SignedIn() bool { return s.Kind == Authenticated }

// Admin reports whether the signed-in profile may write.
func (s State) Admin() bool { return s.Kind == Authenticated && s.Profile.Admin }

var ErrInvalidTransition = errors.New("invalid session transition")

// allowed lists the target kinds reachable from each kind. Sign-out is
// handled separately and is valid from any state.
var allowed = map[Kind][]Kind{
	Anonymous:      {Authenticating},
	Authenticating: {Authenticated, Failed},
	Authenticated:  {},
	Failed:         {Authenticating},
}

// Observer receives every state a Machine enters, in order.
type Observer func(State)

// Machine holds the current State of one session.
type Machine struct {
	mu        sync.Mutex
	state     State
	observers map[int]Observer
	nextID    int
}

func NewMachine() *Machine {
	return &Machine{observers: map[int]Observer{}}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn and returns a function that removes it.
func (m *Machine) Subscribe(fn Observer) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

// Begin marks a sign-in attempt as in flight.
func (m *Machine) Begin() error {
	return m.transition(State{Kind: Authenticating})
}

func (m *Machine) Succeed(p core.Profile) error {
	return m.transition(State{Kind: Authenticated, Profile: p})
}

func (m *Machine) Fail(err error) error {
	if err == nil {
		err = errors.New("sign-in failed")
	}
	return m.transition(State{Kind: Failed, Err: err})
}

// SignOut returns to Anonymous from any state.
func (m *Machine) SignOut() {
	m.mu.Lock()
	m.state = State{Kind: Anonymous}
	next := m.state
	observers := m.snapshot()
	m.mu.Unlock()
	notify(observers, next)
}

func (m *Machine) transition(next State) error {
	m.mu.Lock()
	from := m.state.Kind
	ok := false
	for _, k := range allowed[from] {
		if k == next.Kind {
			ok = true
			break
		}
	}
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next.Kind)
	}
	m.state = next
	observers := m.snapshot()
	m.mu.Unlock()

	notify(observers, next)
	return nil
}

// snapshot must be called with m.mu held.
func (m *Machine) snapshot() []Observer {
	out := make([]Observer, 0, len(m.observers))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.observers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(observers []Observer, s State) {
	for _, fn := range observers {
		fn(s)
	}
}

package reconcile

import (
	"errors"
	"fmt"
	"sync"
)

// State is a step in the per-upload reconciliation state machine.
type State string

const (
	StateStart      State = "start"
	StateLookup     State = "lookup"
	StateCreate     State = "create"
	StateCompare    State = "compare"
	StateSilentLink State = "silent_link"
	StateFlagged    State = "flagged"
	StateProceeded  State = "resolved_proceed"
	StateCancelled  State = "resolved_cancelled"
)

var transitions = map[State][]State{
	StateStart:      {StateLookup},
	StateLookup:     {StateCreate, StateCompare},
	StateCompare:    {StateSilentLink, StateFlagged},
	StateCreate:     {StateProceeded},
	StateSilentLink: {StateProceeded},
	StateFlagged:    {StateProceeded, StateCancelled},
}

// ErrIllegalTransition is returned when an Attempt is driven out of order.
var ErrIllegalTransition = errors.New("illegal reconciliation transition")

// Attempt tracks one upload through reconciliation.
type Attempt struct {
	mu       sync.Mutex
	state    State
	decision Decision
}

// NewAttempt returns an attempt in StateStart.
func NewAttempt() *Attempt {
	return &Attempt{state: StateStart}
}

// State returns the current state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Decision returns the decision recorded when the attempt left compare or lookup.
func (a *Attempt) Decision() Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decision
}

// Advance moves the attempt to next if the transition is allowed.
func (a *Attempt) Advance(next State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.advanceLocked(next)
}

func (a *Attempt) advanceLocked(next State) error {
	for _, allowed := range transitions[a.state] {
		if allowed == next {
			a.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.state, next)
}

func (a *Attempt) decide(next State, decision Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.advanceLocked(next); err != nil {
		return err
	}
	a.decision = decision
	return nil
}

// Resolve finishes the attempt. proceed=false is only legal for a flagged
// attempt; create and silent-link decisions can only proceed.
func (a *Attempt) Resolve(proceed bool) error {
	if proceed {
		return a.Advance(StateProceeded)
	}
	return a.Advance(StateCancelled)
}

// Done reports whether the attempt reached a resolved state.
func (a *Attempt) Done() bool {
	switch a.State() {
	case StateProceeded, StateCancelled:
		return true
	default:
		return false
	}
}

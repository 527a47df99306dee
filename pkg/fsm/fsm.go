// Package fsm provides a small table-driven state machine used to guard
// persisted status transitions.
package fsm

import "fmt"

// Table maps each state to the set of states it may transition to.
// A state with no entry (or an empty entry) is terminal.
type Table[S comparable] map[S][]S

// CanTransition reports whether from -> to is an allowed transition.
func (t Table[S]) CanTransition(from, to S) bool {
	for _, allowed := range t[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state has no outgoing transitions.
func (t Table[S]) IsTerminal(s S) bool {
	return len(t[s]) == 0
}

// Transition validates from -> to against the table and returns a descriptive
// error when the transition is not allowed.
func (t Table[S]) Transition(from, to S) error {
	if !t.CanTransition(from, to) {
		return &TransitionError[S]{From: from, To: to}
	}
	return nil
}

// TransitionError reports a rejected transition.
type TransitionError[S comparable] struct {
	From S
	To   S
}

func (e *TransitionError[S]) Error() string {
	return fmt.Sprintf("cannot transition from %v to %v", e.From, e.To)
}

// Package workflow implements the durable delivery state machine: one
// instance per logical email, driven from request to terminal outcome,
// surviving process restarts by persisting its state before every suspend
// point and recomputing time-based waits from the current clock on resume.
package workflow

import "fmt"

// State is a delivery workflow state.
type State string

const (
	StatePending          State = "pending"
	StateAwaitingApproval State = "awaiting_approval"
	StateScheduled        State = "scheduled"
	StateSending          State = "sending"
	StateSent             State = "sent"
	StateFailed           State = "failed"
	StateApprovalTimeout  State = "approval_timeout"
)

// Terminal reports whether the state has no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSent, StateFailed, StateApprovalTimeout:
		return true
	}
	return false
}

// validTransitions is the full transition table. Sending → Sending covers
// the retry loop; there is no transition out of a terminal state.
var validTransitions = map[State][]State{
	StatePending:          {StateAwaitingApproval, StateScheduled},
	StateAwaitingApproval: {StateScheduled, StateApprovalTimeout, StateFailed},
	StateScheduled:        {StateSending, StateFailed},
	StateSending:          {StateSending, StateSent, StateFailed},
}

// CanTransition reports whether from → to is a legal transition.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns an error describing an illegal transition.
func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal workflow transition %s -> %s", from, to)
	}
	return nil
}

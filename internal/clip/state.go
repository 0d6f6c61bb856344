// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clip

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a Job.
type State string

const (
	StateCreated      State = "CREATED"
	StateResolving    State = "RESOLVING"
	StateFetching     State = "FETCHING"
	StateTransforming State = "TRANSFORMING"
	StateReady        State = "READY"
	StateDelivered    State = "DELIVERED"
	StateFailed       State = "FAILED"
)

// ErrInvalidTransition is returned when a state change would move a job backwards or skip a stage.
var ErrInvalidTransition = errors.New("invalid job state transition")

// forward lists the single non-failure successor of every state.
var forward = map[State]State{
	StateCreated:      StateResolving,
	StateResolving:    StateFetching,
	StateFetching:     StateTransforming,
	StateTransforming: StateReady,
	StateReady:        StateDelivered,
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDelivered || s == StateFailed
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return forward[from] == to
}

// ValidateTransition returns ErrInvalidTransition wrapped with both states when from -> to is not allowed.
func ValidateTransition(from, to State) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

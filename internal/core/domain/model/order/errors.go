package order

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is the sentinel for transitions the lifecycle does
	// not permit from the order's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUnauthorized is the sentinel for actors not entitled to a transition.
	ErrUnauthorized = errors.New("unauthorized transition")
)

// InvalidTransitionError is returned when t is not legal from From. The order
// is left untouched and no event is published.
type InvalidTransitionError struct {
	Transition Transition
	From       Status
	Reason     string
}

func newInvalidTransitionError(t Transition, from Status, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{Transition: t, From: from, Reason: reason}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s order in %s status: %s", ErrInvalidTransition, e.Transition, e.From, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// UnauthorizedError is returned when the actor may not request the
// transition. The order is left untouched and no event is published.
type UnauthorizedError struct {
	Transition Transition
	Actor      string
	Reason     string
}

func newUnauthorizedError(t Transition, actor Actor, reason string) *UnauthorizedError {
	return &UnauthorizedError{Transition: t, Actor: actor.String(), Reason: reason}
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s: %s may not %s: %s", ErrUnauthorized, e.Actor, e.Transition, e.Reason)
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

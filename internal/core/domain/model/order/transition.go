package order

import (
	"fmt"
	"strings"

	"orderflow/internal/pkg/errs"
)

// Transition is a requested change of an order's lifecycle.
type Transition int

const (
	UnknownTransition Transition = iota
	Accept
	Reject
	MarkReady
	AssignAgent
	PickUp
	Deliver
)

type transitionRule struct {
	from []Status
	to   Status
	// keepsStatus marks transitions that only change an attribute.
	keepsStatus bool
}

var transitionRules = map[Transition]transitionRule{
	Accept:      {from: []Status{Pending}, to: Accepted},
	Reject:      {from: []Status{Pending}, to: Rejected},
	MarkReady:   {from: []Status{Accepted}, to: Ready},
	AssignAgent: {from: []Status{Accepted, Ready}, keepsStatus: true},
	PickUp:      {from: []Status{Ready}, to: PickedUp},
	Deliver:     {from: []Status{PickedUp}, to: Delivered},
}

var transitionNames = map[Transition]string{
	UnknownTransition: "unknown",
	Accept:            "accept",
	Reject:            "reject",
	MarkReady:         "ready",
	AssignAgent:       "assign",
	PickUp:            "pickup",
	Deliver:           "deliver",
}

// Transitions lists every valid transition in lifecycle order.
func Transitions() []Transition {
	return []Transition{Accept, Reject, MarkReady, AssignAgent, PickUp, Deliver}
}

// ParseTransition maps the REST verb ("accept", "pickup", ...) to a Transition.
func ParseTransition(s string) (Transition, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for t, name := range transitionNames {
		if t != UnknownTransition && name == needle {
			return t, nil
		}
	}
	return UnknownTransition, errs.NewValueIsInvalidErrorWithCause("transition", fmt.Errorf("%q is not a known transition", s))
}

// String returns the REST verb of the transition.
func (t Transition) String() string {
	if name, ok := transitionNames[t]; ok {
		return name
	}
	return transitionNames[UnknownTransition]
}

// Validate rejects UnknownTransition and out-of-range values.
func (t Transition) Validate() error {
	if _, ok := transitionRules[t]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("transition", fmt.Errorf("%d is not a valid transition", t))
	}
	return nil
}

// RequiredRole is the role an actor must hold to request t.
func (t Transition) RequiredRole() Role {
	switch t {
	case Accept, Reject, MarkReady:
		return RolePartner
	case AssignAgent, PickUp, Deliver:
		return RoleAgent
	default:
		return RoleUnknown
	}
}

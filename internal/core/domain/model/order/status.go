package order

import (
	"fmt"

	"orderflow/internal/pkg/errs"
)

// Status is the lifecycle state of an order. The zero value is Unknown so that
// an uninitialized Status never passes validation.
type Status int

const (
	// Unknown represents an invalid or undefined status.
	Unknown Status = iota

	// Pending is the initial status; the partner has not answered yet.
	Pending

	// Accepted means the partner is preparing the order.
	Accepted

	// Rejected is terminal: the partner declined the order.
	Rejected

	// Ready means the order waits at the partner for pickup.
	Ready

	// PickedUp means the assigned agent is on the way to the customer.
	PickedUp

	// Delivered is terminal: the customer has the order.
	Delivered
)

var statusNames = map[Status]string{
	Unknown:   "Unknown",
	Pending:   "Pending",
	Accepted:  "Accepted",
	Rejected:  "Rejected",
	Ready:     "Ready",
	PickedUp:  "PickedUp",
	Delivered: "Delivered",
}

// Validate accepts every status except Unknown and out-of-range values.
func (s Status) Validate() error {
	if _, ok := statusNames[s]; !ok || s == Unknown {
		return errs.NewValueIsInvalidErrorWithCause("status is invalid", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String returns the status name, "Unknown" for invalid values.
func (s Status) String() string {
	if str, ok := statusNames[s]; ok {
		return str
	}
	return statusNames[Unknown]
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == Rejected || s == Delivered
}

// CanHaveAgent reports whether an agent may be attached while in s.
func (s Status) CanHaveAgent() bool {
	return s == Accepted || s == Ready || s == PickedUp || s == Delivered
}

// Next returns the status reached by applying t from s, or an
// InvalidTransitionError when the table does not allow it. Preconditions that
// depend on the rest of the aggregate (an assigned agent) are checked by Order.
func (s Status) Next(t Transition) (Status, error) {
	r, ok := transitionRules[t]
	if !ok {
		return Unknown, newInvalidTransitionError(t, s, "unknown transition")
	}
	for _, from := range r.from {
		if from == s {
			if r.keepsStatus {
				return s, nil
			}
			return r.to, nil
		}
	}
	return Unknown, newInvalidTransitionError(t, s, fmt.Sprintf("not allowed from %s", s))
}

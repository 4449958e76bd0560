package commands

import (
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/guard"
)

var ErrTransitionOrderCommandIsNotConstructed = errors.New(
	"TransitionOrderCommand must be created via NewTransitionOrderCommand constructor",
)

// TransitionOrderCommand asks to move an order along its lifecycle on behalf
// of an actor. Reason is only read for Reject.
type TransitionOrderCommand struct { //nolint:recvcheck //using for validation
	orderID    kernel.UUID
	transition order.Transition
	actor      order.Actor
	reason     string

	guard guard.ConstructorGuard
}

func NewTransitionOrderCommand(
	orderID kernel.UUID,
	transition order.Transition,
	actor order.Actor,
	reason string,
) (TransitionOrderCommand, error) {
	if err := errors.Join(orderID.Validate(), transition.Validate(), actor.Validate()); err != nil {
		return TransitionOrderCommand{}, err
	}

	return TransitionOrderCommand{
		orderID:    orderID,
		transition: transition,
		actor:      actor,
		reason:     reason,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c TransitionOrderCommand) Validate() error {
	return c.guard.Validate(ErrTransitionOrderCommandIsNotConstructed)
}

func (c TransitionOrderCommand) OrderID() kernel.UUID         { return c.orderID }
func (c TransitionOrderCommand) Transition() order.Transition { return c.transition }
func (c TransitionOrderCommand) Actor() order.Actor           { return c.actor }
func (c TransitionOrderCommand) Reason() string               { return c.reason }

package queries

import (
	"errors"
	"fmt"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var ErrGetActiveOrdersQueryIsNotConstructed = errors.New(
	"GetActiveOrdersQuery must be created via NewGetActiveOrdersQuery constructor",
)

// GetActiveOrdersQuery lists the orders of one party that are not in a
// terminal status. A partner sees orders placed with it, an agent the orders
// assigned to it and a customer its own orders.
type GetActiveOrdersQuery struct {
	owner order.Actor

	guard guard.ConstructorGuard
}

func NewGetActiveOrdersQuery(owner order.Actor) (GetActiveOrdersQuery, error) {
	if err := owner.Validate(); err != nil {
		return GetActiveOrdersQuery{}, err
	}
	if _, err := ownerColumn(owner.Role()); err != nil {
		return GetActiveOrdersQuery{}, err
	}
	return GetActiveOrdersQuery{owner: owner, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the query was created through the constructor.
func (q GetActiveOrdersQuery) Validate() error {
	return q.guard.Validate(ErrGetActiveOrdersQueryIsNotConstructed)
}

func (q GetActiveOrdersQuery) OwnerID() kernel.UUID { return q.owner.ID() }
func (q GetActiveOrdersQuery) Role() order.Role     { return q.owner.Role() }

func ownerColumn(role order.Role) (string, error) {
	switch role {
	case order.RoleCustomer:
		return "customer_id", nil
	case order.RolePartner:
		return "partner_id", nil
	case order.RoleAgent:
		return "agent_id", nil
	default:
		return "", errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%s has no orders", role))
	}
}

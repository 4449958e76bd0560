package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order was not created
	// through NewOrder or RestoreOrder.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder constructor")
)

const maxRejectReasonLength = 500

// Order is the aggregate root owned by the ordering service.
//
// Invariants:
//   - id, customer and partner are valid UUIDs
//   - total equals subtotal plus delivery fee
//   - status only moves forward along the lifecycle
//   - the agent is set at most once and never cleared
type Order struct {
	id         kernel.UUID
	customerID kernel.UUID
	partnerID  kernel.UUID

	// agentID is nil until AssignAgent succeeds
	agentID   *kernel.UUID
	agentName string

	subtotal    kernel.Money
	deliveryFee kernel.Money
	total       kernel.Money

	deliveryAddress string
	rejectReason    string

	status    Status
	createdAt time.Time
	updatedAt time.Time

	isConstructed bool
}

// NewOrder creates a Pending order. The total is derived from subtotal and
// delivery fee.
//
// Example:
//
//	subtotal, _ := kernel.NewMoney(2350)
//	fee, _ := kernel.NewMoney(299)
//	o, err := order.NewOrder(kernel.NewUUID(), customerID, partnerID, subtotal, fee, "12 Main St", time.Now())
func NewOrder(
	id kernel.UUID,
	customerID kernel.UUID,
	partnerID kernel.UUID,
	subtotal kernel.Money,
	deliveryFee kernel.Money,
	deliveryAddress string,
	createdAt time.Time,
) (*Order, error) {
	o := &Order{
		status:        Pending,
		isConstructed: true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setCustomerID(customerID),
		o.setPartnerID(partnerID),
		o.setTotals(subtotal, deliveryFee),
		o.setDeliveryAddress(deliveryAddress),
		o.setCreatedAt(createdAt),
	); err != nil {
		return nil, err
	}

	o.updatedAt = o.createdAt
	return o, nil
}

// Snapshot is the persisted state of an order, used to rebuild the aggregate
// in the repository.
type Snapshot struct {
	ID              kernel.UUID
	CustomerID      kernel.UUID
	PartnerID       kernel.UUID
	AgentID         *kernel.UUID
	AgentName       string
	Subtotal        kernel.Money
	DeliveryFee     kernel.Money
	DeliveryAddress string
	RejectReason    string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RestoreOrder rebuilds an order from persistence, re-checking the invariants
// that tie status and agent together.
func RestoreOrder(s Snapshot) (*Order, error) {
	o := &Order{isConstructed: true}

	if err := errors.Join(
		o.setID(s.ID),
		o.setCustomerID(s.CustomerID),
		o.setPartnerID(s.PartnerID),
		o.setTotals(s.Subtotal, s.DeliveryFee),
		o.setDeliveryAddress(s.DeliveryAddress),
		o.setCreatedAt(s.CreatedAt),
		s.Status.Validate(),
	); err != nil {
		return nil, err
	}

	if s.AgentID != nil {
		if err := s.AgentID.Validate(); err != nil {
			return nil, err
		}
		if !s.Status.CanHaveAgent() {
			return nil, errs.NewValueIsInvalidErrorWithCause(
				"status is invalid",
				fmt.Errorf("%s is not a valid status to have an agent", s.Status),
			)
		}
		agentID := *s.AgentID
		o.agentID = &agentID
		o.agentName = s.AgentName
	} else if s.Status == PickedUp || s.Status == Delivered {
		return nil, errs.NewValueIsInvalidErrorWithCause(
			"status is invalid",
			fmt.Errorf("%s is not a valid status to have no agent", s.Status),
		)
	}

	o.status = s.Status
	o.rejectReason = s.RejectReason
	o.updatedAt = s.UpdatedAt
	if o.updatedAt.IsZero() {
		o.updatedAt = o.createdAt
	}
	return o, nil
}

// Validate ensures the order was built by a constructor.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

func (o *Order) ID() kernel.UUID           { return o.id }
func (o *Order) CustomerID() kernel.UUID   { return o.customerID }
func (o *Order) PartnerID() kernel.UUID    { return o.partnerID }
func (o *Order) Subtotal() kernel.Money    { return o.subtotal }
func (o *Order) DeliveryFee() kernel.Money { return o.deliveryFee }
func (o *Order) Total() kernel.Money       { return o.total }
func (o *Order) DeliveryAddress() string   { return o.deliveryAddress }
func (o *Order) RejectReason() string      { return o.rejectReason }
func (o *Order) Status() Status            { return o.status }
func (o *Order) CreatedAt() time.Time      { return o.createdAt }
func (o *Order) UpdatedAt() time.Time      { return o.updatedAt }
func (o *Order) AgentName() string         { return o.agentName }
func (o *Order) HasAgent() bool            { return o.agentID != nil }
func (o *Order) IsEqual(other *Order) bool { return other != nil && o.id.IsEqual(other.id) }

// AgentID returns the assigned agent, nil before assignment.
func (o *Order) AgentID() *kernel.UUID {
	if o.agentID == nil {
		return nil
	}
	id := *o.agentID
	return &id
}

// Apply performs t on behalf of actor at the given instant. reason is only
// used by Reject. On error the order is unchanged.
func (o *Order) Apply(t Transition, actor Actor, reason string, at time.Time) error {
	switch t {
	case Accept:
		return o.Accept(actor, at)
	case Reject:
		return o.Reject(actor, reason, at)
	case MarkReady:
		return o.MarkReady(actor, at)
	case AssignAgent:
		return o.AssignAgent(actor, at)
	case PickUp:
		return o.PickUp(actor, at)
	case Deliver:
		return o.Deliver(actor, at)
	default:
		return newInvalidTransitionError(t, o.status, "unknown transition")
	}
}

// Accept moves Pending to Accepted. Only the owning partner may accept.
func (o *Order) Accept(actor Actor, at time.Time) error {
	next, err := o.status.Next(Accept)
	if err != nil {
		return err
	}
	if err = o.authorizePartner(Accept, actor); err != nil {
		return err
	}
	o.moveTo(next, at)
	return nil
}

// Reject moves Pending to the terminal Rejected status.
func (o *Order) Reject(actor Actor, reason string, at time.Time) error {
	next, err := o.status.Next(Reject)
	if err != nil {
		return err
	}
	if err = o.authorizePartner(Reject, actor); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxRejectReasonLength {
		return errs.NewValueIsOutOfRangeError("rejectReason length", len(reason), 0, maxRejectReasonLength)
	}
	o.rejectReason = reason
	o.moveTo(next, at)
	return nil
}

// MarkReady moves Accepted to Ready.
func (o *Order) MarkReady(actor Actor, at time.Time) error {
	next, err := o.status.Next(MarkReady)
	if err != nil {
		return err
	}
	if err = o.authorizePartner(MarkReady, actor); err != nil {
		return err
	}
	o.moveTo(next, at)
	return nil
}

// AssignAgent records actor as the delivering agent. Status is unchanged.
// A second assignment is refused as unauthorized, even by the same agent.
func (o *Order) AssignAgent(actor Actor, at time.Time) error {
	next, err := o.status.Next(AssignAgent)
	if err != nil {
		return err
	}
	if err = actor.Validate(); err != nil {
		return err
	}
	if actor.Role() != RoleAgent {
		return newUnauthorizedError(AssignAgent, actor, "only an agent can be assigned")
	}
	if o.agentID != nil {
		return newUnauthorizedError(AssignAgent, actor, "an agent is already assigned")
	}
	agentID := actor.ID()
	o.agentID = &agentID
	o.agentName = actor.Name()
	o.moveTo(next, at)
	return nil
}

// PickUp moves Ready to PickedUp. An agent must already be assigned and only
// that agent may pick the order up.
func (o *Order) PickUp(actor Actor, at time.Time) error {
	next, err := o.status.Next(PickUp)
	if err != nil {
		return err
	}
	if o.agentID == nil {
		return newInvalidTransitionError(PickUp, o.status, "no agent assigned")
	}
	if err = o.authorizeAssignedAgent(PickUp, actor); err != nil {
		return err
	}
	o.moveTo(next, at)
	return nil
}

// Deliver moves PickedUp to the terminal Delivered status.
func (o *Order) Deliver(actor Actor, at time.Time) error {
	next, err := o.status.Next(Deliver)
	if err != nil {
		return err
	}
	if err = o.authorizeAssignedAgent(Deliver, actor); err != nil {
		return err
	}
	o.moveTo(next, at)
	return nil
}

func (o *Order) authorizePartner(t Transition, actor Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if actor.Role() != RolePartner {
		return newUnauthorizedError(t, actor, "only the owning partner can "+t.String())
	}
	if !actor.ID().IsEqual(o.partnerID) {
		return newUnauthorizedError(t, actor, "order belongs to another partner")
	}
	return nil
}

func (o *Order) authorizeAssignedAgent(t Transition, actor Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if actor.Role() != RoleAgent {
		return newUnauthorizedError(t, actor, "only the assigned agent can "+t.String())
	}
	if o.agentID == nil || !actor.ID().IsEqual(*o.agentID) {
		return newUnauthorizedError(t, actor, "order is assigned to another agent")
	}
	return nil
}

func (o *Order) moveTo(next Status, at time.Time) {
	o.status = next
	if at.Before(o.updatedAt) {
		at = o.updatedAt
	}
	o.updatedAt = at.UTC()
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *Order) setCustomerID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("customerId", err)
	}
	o.customerID = id
	return nil
}

func (o *Order) setPartnerID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("partnerId", err)
	}
	o.partnerID = id
	return nil
}

func (o *Order) setTotals(subtotal, deliveryFee kernel.Money) error {
	total, err := subtotal.Add(deliveryFee)
	if err != nil {
		return err
	}
	o.subtotal = subtotal
	o.deliveryFee = deliveryFee
	o.total = total
	return nil
}

func (o *Order) setDeliveryAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return errs.NewValueIsRequiredError("deliveryAddress")
	}
	o.deliveryAddress = address
	return nil
}

func (o *Order) setCreatedAt(at time.Time) error {
	if at.IsZero() {
		return errs.NewValueIsRequiredError("createdAt")
	}
	o.createdAt = at.UTC()
	return nil
}

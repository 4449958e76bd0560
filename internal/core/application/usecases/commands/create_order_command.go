package commands

import (
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var (
	ErrCreateOrderCommandIsNotConstructed = errors.New(
		"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
	)
	ErrOnlyCustomersCreateOrders = errors.New("only a customer can place an order")
)

// CreateOrderCommand represents a customer placing an order with a partner.
// Amounts are in minor units.
//
// Example:
//
//	cmd, err := NewCreateOrderCommand(kernel.NewUUID(), customer, partnerID, 2350, 299, "12 Main St")
//	if err != nil {
//	    return fmt.Errorf("invalid order data: %w", err)
//	}
//	if err := handler.Handle(ctx, cmd); err != nil {
//	    return fmt.Errorf("failed to create order: %w", err)
//	}
type CreateOrderCommand struct { //nolint:recvcheck //using for validation
	orderID     kernel.UUID
	customer    order.Actor
	partnerID   kernel.UUID
	subtotal    kernel.Money
	deliveryFee kernel.Money
	address     string

	guard guard.ConstructorGuard
}

// NewCreateOrderCommand validates every field and reports all problems at once.
func NewCreateOrderCommand(
	orderID kernel.UUID,
	customer order.Actor,
	partnerID kernel.UUID,
	subtotal int64,
	deliveryFee int64,
	address string,
) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setCustomer(customer),
		cmd.setPartnerID(partnerID),
		cmd.setAmounts(subtotal, deliveryFee),
		cmd.setAddress(address),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

func (c CreateOrderCommand) OrderID() kernel.UUID      { return c.orderID }
func (c CreateOrderCommand) Customer() order.Actor     { return c.customer }
func (c CreateOrderCommand) PartnerID() kernel.UUID    { return c.partnerID }
func (c CreateOrderCommand) Subtotal() kernel.Money    { return c.subtotal }
func (c CreateOrderCommand) DeliveryFee() kernel.Money { return c.deliveryFee }
func (c CreateOrderCommand) DeliveryAddress() string   { return c.address }

func (c *CreateOrderCommand) setOrderID(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}
	c.orderID = orderID
	return nil
}

func (c *CreateOrderCommand) setCustomer(customer order.Actor) error {
	if err := customer.Validate(); err != nil {
		return err
	}
	if customer.Role() != order.RoleCustomer {
		return ErrOnlyCustomersCreateOrders
	}
	c.customer = customer
	return nil
}

func (c *CreateOrderCommand) setPartnerID(partnerID kernel.UUID) error {
	if err := partnerID.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("partnerId", err)
	}
	c.partnerID = partnerID
	return nil
}

func (c *CreateOrderCommand) setAmounts(subtotal, deliveryFee int64) error {
	s, err := kernel.NewMoney(subtotal)
	if err != nil {
		return err
	}
	f, err := kernel.NewMoney(deliveryFee)
	if err != nil {
		return err
	}
	c.subtotal = s
	c.deliveryFee = f
	return nil
}

func (c *CreateOrderCommand) setAddress(address string) error {
	if address == "" {
		return errs.NewValueIsRequiredError("deliveryAddress")
	}
	c.address = address
	return nil
}

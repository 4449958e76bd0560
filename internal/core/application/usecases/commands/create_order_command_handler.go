package commands

import (
	"context"
	"log/slog"
	"time"

	"orderflow/internal/core/domain/events"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/metrics"
)

// CreateOrderCommandHandler persists a new Pending order and publishes
// order-created once the transaction is committed.
//
// Example:
//
//	handler := NewCreateOrderCommandHandler(uowFactory, publisher, metrics.Noop{}, logger)
//	cmd, _ := NewCreateOrderCommand(kernel.NewUUID(), customer, partnerID, 2350, 299, "12 Main St")
//
//	if err := handler.Handle(ctx, cmd); err != nil {
//	    return fmt.Errorf("order creation failed: %w", err)
//	}
type CreateOrderCommandHandler struct {
	uowFactory OrderUoWFactory
	after      afterCommit
}

// NewCreateOrderCommandHandler creates a handler for order creation operations.
func NewCreateOrderCommandHandler(
	uowFactory OrderUoWFactory,
	publisher ports.EventPublisher,
	sink metrics.Sink,
	logger *slog.Logger,
) CreateOrderCommandHandler {
	return CreateOrderCommandHandler{
		uowFactory: uowFactory,
		after: afterCommit{
			publisher: publisher,
			metrics:   sink,
			logger:    logger.With("component", "create_order_handler"),
			now:       time.Now,
		},
	}
}

// Handle creates the order. A nil error means the order is stored; whether
// the event reached the broker is only visible in logs and metrics.
func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	created, err := order.NewOrder(
		cmd.OrderID(),
		cmd.Customer().ID(),
		cmd.PartnerID(),
		cmd.Subtotal(),
		cmd.DeliveryFee(),
		cmd.DeliveryAddress(),
		h.after.now(),
	)
	if err != nil {
		return err
	}
	event := events.NewOrderCreated(created)

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err = uow.OrderRepository().Add(ctx, created); err != nil {
		return err
	}

	record := newRecord(created.ID(), "create", created.Status().String(), cmd.Customer().String(), event, created.CreatedAt())
	if err = uow.TransitionRepository().Append(ctx, record); err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	h.after.metrics.TransitionApplied(ctx, "create")
	h.after.publish(ctx, uow, record.ID, event)
	return nil
}

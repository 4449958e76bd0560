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

// TransitionOrderCommandHandler is the order lifecycle state machine entry
// point. Per successful call it commits exactly one transition and publishes
// exactly one event; failed calls publish nothing.
//
// Steps:
//  1. lock the order row (SELECT ... FOR UPDATE) inside a unit of work
//  2. apply the transition on the aggregate (legality, then authorization)
//  3. update the row and append the transition record, commit
//  4. publish the event, then stamp the record as published
type TransitionOrderCommandHandler struct {
	uowFactory OrderUoWFactory
	after      afterCommit
}

func NewTransitionOrderCommandHandler(
	uowFactory OrderUoWFactory,
	publisher ports.EventPublisher,
	sink metrics.Sink,
	logger *slog.Logger,
) TransitionOrderCommandHandler {
	return TransitionOrderCommandHandler{
		uowFactory: uowFactory,
		after: afterCommit{
			publisher: publisher,
			metrics:   sink,
			logger:    logger.With("component", "transition_order_handler"),
			now:       time.Now,
		},
	}
}

// Handle returns the resulting status. Domain failures come back as
// order.InvalidTransitionError or order.UnauthorizedError, an unknown order
// as errs.ObjectNotFoundError.
func (h *TransitionOrderCommandHandler) Handle(ctx context.Context, cmd TransitionOrderCommand) (order.Status, error) {
	if err := cmd.Validate(); err != nil {
		return order.Unknown, err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return order.Unknown, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orderRepo := uow.OrderRepository()
	o, err := orderRepo.GetForUpdate(ctx, cmd.OrderID())
	if err != nil {
		return order.Unknown, err
	}

	if err = o.Apply(cmd.Transition(), cmd.Actor(), cmd.Reason(), h.after.now()); err != nil {
		return order.Unknown, err
	}

	event, err := events.ForTransition(o, cmd.Transition())
	if err != nil {
		return order.Unknown, err
	}

	if err = orderRepo.Update(ctx, o); err != nil {
		return order.Unknown, err
	}

	record := newRecord(o.ID(), cmd.Transition().String(), o.Status().String(), cmd.Actor().String(), event, o.UpdatedAt())
	if err = uow.TransitionRepository().Append(ctx, record); err != nil {
		return order.Unknown, err
	}

	if err = uow.Commit(ctx); err != nil {
		return order.Unknown, err
	}

	h.after.metrics.TransitionApplied(ctx, cmd.Transition().String())
	h.after.logger.InfoContext(ctx, "Order transitioned",
		"order_id", o.ID().String(),
		"transition", cmd.Transition().String(),
		"status", o.Status().String(),
	)
	h.after.publish(ctx, uow, record.ID, event)
	return o.Status(), nil
}

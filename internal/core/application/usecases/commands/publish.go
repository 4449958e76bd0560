package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orderflow/internal/core/domain/events"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/metrics"
)

// ErrPublishFailed marks an event whose state change is committed but that
// the broker did not acknowledge. It is logged and counted, never returned.
var ErrPublishFailed = errors.New("event publish failed after commit")

// afterCommit publishes the event of a committed write and stamps its
// transition record. Both steps are best effort: the write already happened
// and the caller is told it succeeded.
type afterCommit struct {
	publisher ports.EventPublisher
	metrics   metrics.Sink
	logger    *slog.Logger
	now       func() time.Time
}

func (p afterCommit) publish(ctx context.Context, history TransitionRepoFactory, recordID kernel.UUID, event events.Event) {
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.metrics.PublishFailed(ctx, event.Topic())
		p.logger.ErrorContext(ctx, "Event lost, order state is ahead of the log",
			"error", fmt.Errorf("%w: %w", ErrPublishFailed, err),
			"topic", event.Topic(),
			"key", event.Key(),
		)
		return
	}

	if err := history.TransitionRepository().MarkPublished(ctx, recordID, p.now()); err != nil {
		p.logger.WarnContext(ctx, "Failed to mark transition as published",
			"error", err,
			"transition_id", recordID.String(),
		)
	}
}

func newRecord(orderID kernel.UUID, transition, status, actor string, event events.Event, at time.Time) ports.TransitionRecord {
	return ports.TransitionRecord{
		ID:         kernel.NewUUID(),
		OrderID:    orderID,
		Transition: transition,
		Status:     status,
		Topic:      event.Topic(),
		Actor:      actor,
		OccurredAt: at,
	}
}

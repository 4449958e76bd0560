package ports

import (
	"context"
	"time"

	"orderflow/internal/core/domain/model/kernel"
)

// TransitionRecord is one entry of an order's transition history. It is
// written in the same transaction as the order row and records the intent to
// publish; PublishedAt stays nil until the event reached the broker.
type TransitionRecord struct {
	ID          kernel.UUID
	OrderID     kernel.UUID
	Transition  string
	Status      string
	Topic       string
	Actor       string
	OccurredAt  time.Time
	PublishedAt *time.Time
}

// TransitionRepository persists the transition history.
type TransitionRepository interface {
	// Append stores a new record. Records are never updated except for
	// MarkPublished.
	Append(ctx context.Context, record TransitionRecord) error

	// MarkPublished stamps the publish time of a record.
	MarkPublished(ctx context.Context, id kernel.UUID, at time.Time) error

	// ListUnpublished returns up to limit records that occurred before the
	// given instant and were never marked published, oldest first.
	ListUnpublished(ctx context.Context, occurredBefore time.Time, limit int) ([]TransitionRecord, error)
}

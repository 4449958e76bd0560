package ports

import (
	"context"

	"orderflow/internal/core/domain/events"
)

// EventPublisher hands an integration event to the event log. A returned
// error means the broker did not acknowledge the event; it is not retried.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

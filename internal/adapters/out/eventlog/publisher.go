// Package eventlog publishes domain events to the event log.
package eventlog

import (
	"context"

	"orderflow/internal/core/domain/events"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/eventbus"
)

var _ ports.EventPublisher = (*Publisher)(nil)

// Publisher writes each event to its topic, keyed by order id.
type Publisher struct {
	broker eventbus.Broker
}

func NewPublisher(broker eventbus.Broker) (*Publisher, error) {
	if broker == nil {
		return nil, errs.NewValueIsRequiredError("broker")
	}
	return &Publisher{broker: broker}, nil
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	if e == nil {
		return errs.NewValueIsRequiredError("event")
	}
	return eventbus.Publish(ctx, p.broker, e.Topic(), e.Key(), e)
}

package consumers

import (
	"context"

	"orderflow/internal/core/domain/events"
	"orderflow/internal/realtime"
)

// Partners subscribes the partner pushers. Every push targets the partner
// that owns the order.
func (c *Consumers) Partners(reg *realtime.Registry) {
	subscribe(c, ServicePartners, events.TopicOrderCreated, pushToPartner[events.OrderCreated](c, reg))
	subscribe(c, ServicePartners, events.TopicAgentAssigned, pushToPartner[events.AgentAssigned](c, reg))
	subscribe(c, ServicePartners, events.TopicOrderPickedUp, pushToPartner[events.OrderPickedUp](c, reg))
	subscribe(c, ServicePartners, events.TopicOrderDelivered, pushToPartner[events.OrderDelivered](c, reg))
}

func pushToPartner[T payload](c *Consumers, reg *realtime.Registry) func(context.Context, T) error {
	return func(ctx context.Context, e T) error {
		return c.sendTo(ctx, reg, e.Meta().PartnerID, e)
	}
}

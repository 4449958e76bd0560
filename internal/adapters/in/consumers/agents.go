package consumers

import (
	"context"

	"orderflow/internal/core/domain/events"
	"orderflow/internal/realtime"
)

// Agents subscribes the agent pushers: available jobs go to the broadcast
// room, assignment and readiness go to the assigned agent.
func (c *Consumers) Agents(reg *realtime.Registry) {
	subscribe(c, ServiceAgents, events.TopicOrderAccepted, func(ctx context.Context, e events.OrderAccepted) error {
		_, err := reg.BroadcastAll(ctx, e.EventType(), e)
		return err
	})

	subscribe(c, ServiceAgents, events.TopicAgentAssigned, func(ctx context.Context, e events.AgentAssigned) error {
		if err := c.sendTo(ctx, reg, e.AgentID, e); err != nil {
			return err
		}
		taken := events.JobTaken{OrderID: e.OrderID, AgentID: e.AgentID}
		_, err := reg.BroadcastAll(ctx, taken.EventType(), taken)
		return err
	})

	subscribe(c, ServiceAgents, events.TopicOrderReady, func(ctx context.Context, e events.OrderReady) error {
		if e.AgentID == "" {
			return nil
		}
		return c.sendTo(ctx, reg, e.AgentID, e)
	})
}

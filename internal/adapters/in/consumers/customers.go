package consumers

import (
	"context"
	"fmt"

	"orderflow/internal/core/domain/events"
	"orderflow/internal/core/domain/model/notification"
	"orderflow/internal/realtime"
)

// Notifier hands a notification to its channel.
type Notifier interface {
	Dispatch(ctx context.Context, n notification.Notification) error
}

// Customers subscribes the customer pushers. On delivery the customer also
// gets an email receipt through notifier.
func (c *Consumers) Customers(reg *realtime.Registry, notifier Notifier) {
	subscribe(c, ServiceCustomers, events.TopicOrderAccepted, pushToCustomer[events.OrderAccepted](c, reg))
	subscribe(c, ServiceCustomers, events.TopicOrderRejected, pushToCustomer[events.OrderRejected](c, reg))
	subscribe(c, ServiceCustomers, events.TopicOrderReady, pushToCustomer[events.OrderReady](c, reg))
	subscribe(c, ServiceCustomers, events.TopicAgentAssigned, pushToCustomer[events.AgentAssigned](c, reg))
	subscribe(c, ServiceCustomers, events.TopicOrderPickedUp, pushToCustomer[events.OrderPickedUp](c, reg))

	subscribe(c, ServiceCustomers, events.TopicOrderDelivered, func(ctx context.Context, e events.OrderDelivered) error {
		if err := c.sendTo(ctx, reg, e.CustomerID, e); err != nil {
			return err
		}
		receipt, err := newReceipt(e)
		if err != nil {
			return err
		}
		return notifier.Dispatch(ctx, receipt)
	})
}

func pushToCustomer[T payload](c *Consumers, reg *realtime.Registry) func(context.Context, T) error {
	return func(ctx context.Context, e T) error {
		return c.sendTo(ctx, reg, e.Meta().CustomerID, e)
	}
}

func newReceipt(e events.OrderDelivered) (notification.Notification, error) {
	body := fmt.Sprintf("Order %s was delivered at %s by %s. Total charged: %d.%02d.",
		e.OrderID, e.OccurredAt.Format("2006-01-02 15:04 MST"), e.AgentName, e.Total/100, e.Total%100)
	return notification.NewNotification(notification.Email, e.CustomerID, "Your order was delivered", body)
}

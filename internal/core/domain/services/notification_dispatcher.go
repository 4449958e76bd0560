package services

import (
	"context"
	"errors"
	"fmt"

	"orderflow/internal/core/domain/model/notification"
)

// ErrSenderNotFound is returned when no sender is registered for the
// notification's channel.
var ErrSenderNotFound = errors.New("sender not found")

// NotificationSender delivers notifications of one channel.
type NotificationSender interface {
	Send(ctx context.Context, n notification.Notification) error
}

// NotificationDispatcher is a domain service that hands a notification to
// the sender registered for its channel.
//
// Business rules:
//   - Notifications must be valid before dispatch
//   - Exactly one sender serves each channel
//   - A channel without a sender is an error, never a silent drop
//
// Example usage:
//
//	dispatcher, _ := services.NewNotificationDispatcher(map[notification.Channel]services.NotificationSender{
//	    notification.Email: emailSender,
//	})
//	receipt, _ := notification.NewNotification(notification.Email, customerID, "Receipt", body)
//	if err := dispatcher.Dispatch(ctx, receipt); errors.Is(err, services.ErrSenderNotFound) {
//	    // the channel is not configured in this process
//	}
type NotificationDispatcher struct {
	senders map[notification.Channel]NotificationSender
}

// NewNotificationDispatcher copies senders into the lookup table.
//
// Returns:
//   - NotificationDispatcher: ready to dispatch
//   - error: when a key is not a valid channel or a sender is nil
func NewNotificationDispatcher(senders map[notification.Channel]NotificationSender) (NotificationDispatcher, error) {
	table := make(map[notification.Channel]NotificationSender, len(senders))
	for channel, sender := range senders {
		if err := channel.Validate(); err != nil {
			return NotificationDispatcher{}, err
		}
		if sender == nil {
			return NotificationDispatcher{}, fmt.Errorf("sender for %s is nil", channel)
		}
		table[channel] = sender
	}
	return NotificationDispatcher{senders: table}, nil
}

// Dispatch validates n and sends it through the sender of its channel.
//
// Returns:
//   - error: ErrSenderNotFound when the channel has no sender, validation
//     errors, or the sender's own error
func (d NotificationDispatcher) Dispatch(ctx context.Context, n notification.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	sender, ok := d.senders[n.Channel()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSenderNotFound, n.Channel())
	}

	if err := sender.Send(ctx, n); err != nil {
		return fmt.Errorf("send %s notification: %w", n.Channel(), err)
	}
	return nil
}

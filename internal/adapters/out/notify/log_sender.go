// Package notify holds the notification senders. Delivery providers are
// external; LogSender records the hand-off so a process runs without them.
package notify

import (
	"context"
	"log/slog"

	"orderflow/internal/core/domain/model/notification"
	"orderflow/internal/core/domain/services"
)

type LogSender struct {
	logger *slog.Logger
}

var _ services.NotificationSender = (*LogSender)(nil)

func NewLogSender(channel notification.Channel, logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "notify", "channel", channel.String())}
}

func (s *LogSender) Send(ctx context.Context, n notification.Notification) error {
	s.logger.InfoContext(ctx, "Notification handed off",
		"recipient", n.Recipient(),
		"subject", n.Subject(),
		"bytes", len(n.Body()),
	)
	return nil
}

// Senders returns a LogSender for every channel.
func Senders(logger *slog.Logger) map[notification.Channel]services.NotificationSender {
	senders := make(map[notification.Channel]services.NotificationSender)
	for _, c := range notification.Channels() {
		senders[c] = NewLogSender(c, logger)
	}
	return senders
}

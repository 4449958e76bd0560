package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/domain/model/notification"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/pkg/errs"
)

type recordingSender struct {
	sent []notification.Notification
	err  error
}

func (s *recordingSender) Send(_ context.Context, n notification.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func TestNotificationDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("should route to the sender of the channel", func(t *testing.T) {
		email, sms := &recordingSender{}, &recordingSender{}
		dispatcher, err := services.NewNotificationDispatcher(map[notification.Channel]services.NotificationSender{
			notification.Email: email,
			notification.SMS:   sms,
		})
		require.NoError(t, err)

		n, err := notification.NewNotification(notification.SMS, "c-1", "", "Your order is on its way")
		require.NoError(t, err)

		require.NoError(t, dispatcher.Dispatch(ctx, n))
		assert.Empty(t, email.sent)
		assert.Equal(t, []notification.Notification{n}, sms.sent)
	})

	t.Run("should fail when channel has no sender", func(t *testing.T) {
		dispatcher, err := services.NewNotificationDispatcher(nil)
		require.NoError(t, err)

		n, err := notification.NewNotification(notification.Push, "c-1", "", "Delivered")
		require.NoError(t, err)

		require.ErrorIs(t, dispatcher.Dispatch(ctx, n), services.ErrSenderNotFound)
	})

	t.Run("should reject zero value notification", func(t *testing.T) {
		dispatcher, err := services.NewNotificationDispatcher(map[notification.Channel]services.NotificationSender{
			notification.Email: &recordingSender{},
		})
		require.NoError(t, err)

		err = dispatcher.Dispatch(ctx, notification.Notification{})
		require.ErrorIs(t, err, notification.ErrNotificationIsNotConstructed)
	})

	t.Run("should wrap sender failure", func(t *testing.T) {
		sendErr := errors.New("smtp unavailable")
		dispatcher, err := services.NewNotificationDispatcher(map[notification.Channel]services.NotificationSender{
			notification.Email: &recordingSender{err: sendErr},
		})
		require.NoError(t, err)

		n, err := notification.NewNotification(notification.Email, "c-1", "Receipt", "Total 26.49")
		require.NoError(t, err)

		require.ErrorIs(t, dispatcher.Dispatch(ctx, n), sendErr)
	})
}

func TestNewNotificationDispatcher_Validation(t *testing.T) {
	_, err := services.NewNotificationDispatcher(map[notification.Channel]services.NotificationSender{
		notification.ChannelUnknown: &recordingSender{},
	})
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)

	_, err = services.NewNotificationDispatcher(map[notification.Channel]services.NotificationSender{
		notification.Email: nil,
	})
	require.Error(t, err)
}

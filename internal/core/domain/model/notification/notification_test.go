package notification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/domain/model/notification"
	"orderflow/internal/pkg/errs"
)

func TestParseChannel(t *testing.T) {
	for _, c := range notification.Channels() {
		got, err := notification.ParseChannel(" " + c.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := notification.ParseChannel("fax")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	_, err = notification.ParseChannel("unknown")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestNewNotification(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		n, err := notification.NewNotification(notification.Email, " c-1 ", " Receipt ", " Total 26.49 ")

		require.NoError(t, err)
		require.NoError(t, n.Validate())
		assert.Equal(t, notification.Email, n.Channel())
		assert.Equal(t, "c-1", n.Recipient())
		assert.Equal(t, "Receipt", n.Subject())
		assert.Equal(t, "Total 26.49", n.Body())
	})

	t.Run("collects every problem", func(t *testing.T) {
		_, err := notification.NewNotification(notification.ChannelUnknown, "", "s", "")

		require.ErrorIs(t, err, errs.ErrValueIsInvalid)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
		assert.Contains(t, err.Error(), "recipient")
		assert.Contains(t, err.Error(), "body")
	})

	t.Run("zero value", func(t *testing.T) {
		var n notification.Notification
		require.ErrorIs(t, n.Validate(), notification.ErrNotificationIsNotConstructed)
	})
}

// Package notification models out-of-band messages handed to external
// delivery channels (email, SMS, push).
package notification

import (
	"errors"
	"fmt"
	"strings"

	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var ErrNotificationIsNotConstructed = errors.New("Notification must be created via NewNotification constructor")

// Channel selects the sender. The zero value is not a channel.
type Channel int

const (
	ChannelUnknown Channel = iota
	Email
	SMS
	Push
)

var channelNames = map[Channel]string{
	ChannelUnknown: "unknown",
	Email:          "email",
	SMS:            "sms",
	Push:           "push",
}

// Channels lists every real channel.
func Channels() []Channel {
	return []Channel{Email, SMS, Push}
}

func ParseChannel(s string) (Channel, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for c, name := range channelNames {
		if c != ChannelUnknown && name == needle {
			return c, nil
		}
	}
	return ChannelUnknown, errs.NewValueIsInvalidErrorWithCause("channel", fmt.Errorf("%q is not a known channel", s))
}

func (c Channel) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return channelNames[ChannelUnknown]
}

func (c Channel) Validate() error {
	if _, ok := channelNames[c]; !ok || c == ChannelUnknown {
		return errs.NewValueIsInvalidErrorWithCause("channel", fmt.Errorf("%d is not a valid channel", c))
	}
	return nil
}

// Notification is one message for one recipient. Recipient is an identity
// the channel resolves (a customer id), not an address.
type Notification struct {
	channel   Channel
	recipient string
	subject   string
	body      string

	guard guard.ConstructorGuard
}

func NewNotification(channel Channel, recipient, subject, body string) (Notification, error) {
	recipient = strings.TrimSpace(recipient)
	body = strings.TrimSpace(body)

	var errList []error
	if err := channel.Validate(); err != nil {
		errList = append(errList, err)
	}
	if recipient == "" {
		errList = append(errList, errs.NewValueIsRequiredError("recipient"))
	}
	if body == "" {
		errList = append(errList, errs.NewValueIsRequiredError("body"))
	}
	if err := errors.Join(errList...); err != nil {
		return Notification{}, err
	}

	return Notification{
		channel:   channel,
		recipient: recipient,
		subject:   strings.TrimSpace(subject),
		body:      body,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

func (n Notification) Channel() Channel  { return n.channel }
func (n Notification) Recipient() string { return n.recipient }
func (n Notification) Subject() string   { return n.subject }
func (n Notification) Body() string      { return n.body }

func (n Notification) Validate() error {
	return n.guard.Validate(ErrNotificationIsNotConstructed)
}

// Package metrics is the counter sink injected into every component that
// reports operational events. Exporter wiring lives in the composition root;
// components only see Sink.
package metrics

import "context"

// Outcomes reported with EventConsumed and PushAttempted.
const (
	OutcomeOK           = "ok"
	OutcomeDecodeError  = "decode_error"
	OutcomeHandlerError = "handler_error"
	OutcomeNotConnected = "not_connected"
)

// Sink receives counter increments. Implementations must be safe for
// concurrent use.
type Sink interface {
	TransitionApplied(ctx context.Context, transition string)
	PublishFailed(ctx context.Context, topic string)
	EventConsumed(ctx context.Context, topic, group, outcome string)
	PushAttempted(ctx context.Context, audience, eventType, outcome string)
	ConnectionsSwept(ctx context.Context, audience string, removed int)
}

// Noop discards everything.
type Noop struct{}

var _ Sink = Noop{}

func (Noop) TransitionApplied(context.Context, string)             {}
func (Noop) PublishFailed(context.Context, string)                 {}
func (Noop) EventConsumed(context.Context, string, string, string) {}
func (Noop) PushAttempted(context.Context, string, string, string) {}
func (Noop) ConnectionsSwept(context.Context, string, int)         {}

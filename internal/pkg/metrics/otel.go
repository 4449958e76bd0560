package metrics

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTel records every counter through an OpenTelemetry meter.
type OTel struct {
	transitions     metric.Int64Counter
	publishFailures metric.Int64Counter
	consumed        metric.Int64Counter
	pushes          metric.Int64Counter
	swept           metric.Int64Counter
}

var _ Sink = (*OTel)(nil)

// NewOTel creates the instruments on meter.
func NewOTel(meter metric.Meter) (*OTel, error) {
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	m := &OTel{
		transitions:     counter("orderflow.transitions", "Order transitions committed"),
		publishFailures: counter("orderflow.publish_failures", "Events committed but not acknowledged by the broker"),
		consumed:        counter("orderflow.events_consumed", "Events handled by consumers, by outcome"),
		pushes:          counter("orderflow.pushes", "WebSocket pushes, by outcome"),
		swept:           counter("orderflow.connections_swept", "Closed connections removed by the sweep job"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *OTel) TransitionApplied(ctx context.Context, transition string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", transition)))
}

func (m *OTel) PublishFailed(ctx context.Context, topic string) {
	m.publishFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *OTel) EventConsumed(ctx context.Context, topic, group, outcome string) {
	m.consumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("group", group),
		attribute.String("outcome", outcome),
	))
}

func (m *OTel) PushAttempted(ctx context.Context, audience, eventType, outcome string) {
	m.pushes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("audience", audience),
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (m *OTel) ConnectionsSwept(ctx context.Context, audience string, removed int) {
	if removed <= 0 {
		return
	}
	m.swept.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("audience", audience)))
}

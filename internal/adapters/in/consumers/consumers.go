// Package consumers turns events from the log into WebSocket pushes.
//
// Every (service, topic) pair is its own subscription with group id
// "<service>.<topic>": instances of one service share the partitions, and
// every service gets its own copy of the stream.
//
// A recipient who is not connected misses the push; there is no retry and
// no queue. Any other failure is returned to the bus, which redelivers the
// event. Pushing the same event twice is harmless.
package consumers

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"orderflow/internal/core/domain/events"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/realtime"
)

// Services that consume events.
const (
	ServiceAgents    = "agents"
	ServicePartners  = "partners"
	ServiceCustomers = "customers"
)

// GroupID returns the consumer group of service on topic.
func GroupID(service, topic string) string {
	return service + "." + topic
}

// payload is what every consumer decodes: a topic event that also exposes
// its header.
type payload interface {
	events.Event
	Meta() events.Header
}

type subscription struct {
	service string
	topic   string
	run     func(ctx context.Context) error
}

// Consumers is the set of subscriptions one process runs.
type Consumers struct {
	broker  eventbus.Broker
	logger  *slog.Logger
	metrics metrics.Sink
	subs    []subscription
}

func New(broker eventbus.Broker, logger *slog.Logger, sink metrics.Sink) *Consumers {
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Consumers{
		broker:  broker,
		logger:  logger.With("component", "consumers"),
		metrics: sink,
	}
}

// Groups lists the group ids registered so far.
func (c *Consumers) Groups() []string {
	groups := make([]string, 0, len(c.subs))
	for _, s := range c.subs {
		groups = append(groups, GroupID(s.service, s.topic))
	}
	return groups
}

// Run starts every subscription and blocks until all of them returned. The
// first subscription that fails cancels the others.
func (c *Consumers) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range c.subs {
		g.Go(func() error { return s.run(ctx) })
	}
	return g.Wait()
}

func subscribe[T payload](c *Consumers, service, topic string, handle func(ctx context.Context, e T) error) {
	group := GroupID(service, topic)
	c.subs = append(c.subs, subscription{
		service: service,
		topic:   topic,
		run: func(ctx context.Context) error {
			return eventbus.Subscribe(ctx, c.broker, []string{topic}, group, c.logger,
				func(ctx context.Context, _ eventbus.Message, e T) error { return handle(ctx, e) },
				eventbus.WithMetrics(c.metrics),
				eventbus.WithMaxVersion(events.Version),
			)
		},
	})
}

// sendTo pushes e to the connection of id in reg.
func (c *Consumers) sendTo(ctx context.Context, reg *realtime.Registry, id string, e payload) error {
	if id == "" {
		c.logger.WarnContext(ctx, "Event has no recipient", "audience", reg.Audience(), "type", e.EventType(), "order", e.Key())
		return nil
	}
	return c.ignoreNotConnected(ctx, reg.SendTo(ctx, id, e.EventType(), e), reg.Audience(), e)
}

func (c *Consumers) ignoreNotConnected(ctx context.Context, err error, audience string, e payload) error {
	if errors.Is(err, realtime.ErrNotConnected) {
		c.logger.DebugContext(ctx, "Recipient not connected", "audience", audience, "type", e.EventType(), "order", e.Key(), "reason", err)
		return nil
	}
	return err
}

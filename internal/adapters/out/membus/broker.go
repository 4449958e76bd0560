// Package membus is an in-process eventbus.Broker. Each topic is a single
// partition held in memory; consumer groups keep a committed offset per topic.
// It backs local single-process runs and the end-to-end tests.
package membus

import (
	"context"
	"errors"
	"sync"
	"time"

	"orderflow/internal/pkg/eventbus"
)

var ErrClosed = errors.New("membus: broker is closed")

const defaultRetryDelay = 50 * time.Millisecond

type cursorKey struct {
	group string
	topic string
}

// cursor is the committed position of a group on a topic. inflight is set
// while one member of the group handles the message at next.
type cursor struct {
	next     int64
	inflight bool
}

// Broker keeps every topic log in memory.
type Broker struct {
	mu         sync.Mutex
	logs       map[string][]eventbus.Message
	cursors    map[cursorKey]*cursor
	rotation   map[string]int
	wake       chan struct{}
	closed     bool
	publishErr error
	retryDelay time.Duration
}

var _ eventbus.Broker = (*Broker)(nil)

type Option func(*Broker)

// WithRetryDelay sets how long a failed message waits before redelivery.
func WithRetryDelay(d time.Duration) Option {
	return func(b *Broker) { b.retryDelay = d }
}

func New(opts ...Option) *Broker {
	b := &Broker{
		logs:       make(map[string][]eventbus.Message),
		cursors:    make(map[cursorKey]*cursor),
		rotation:   make(map[string]int),
		wake:       make(chan struct{}),
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish appends to the topic log and wakes every consumer.
func (b *Broker) Publish(ctx context.Context, topic, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.publishErr != nil {
		return b.publishErr
	}

	log := b.logs[topic]
	b.logs[topic] = append(log, eventbus.Message{
		Topic:  topic,
		Key:    key,
		Value:  append([]byte(nil), value...),
		Offset: int64(len(log)),
	})
	b.broadcastLocked()
	return nil
}

// Consume delivers messages from the group's committed offset on. Several
// Consume calls with the same group compete for messages like group members.
func (b *Broker) Consume(ctx context.Context, topics []string, groupID string, handler eventbus.RawHandler) error {
	for {
		msg, c, wake, err := b.claim(topics, groupID)
		if err != nil {
			return err
		}

		if c == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-wake:
				continue
			}
		}

		handlerErr := handler(ctx, msg)
		b.release(c, handlerErr == nil)

		if handlerErr != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.retryDelay):
			}
		}
	}
}

// claim returns the next message for the group, or a nil cursor and the
// channel to wait on when there is nothing to do.
func (b *Broker) claim(topics []string, groupID string) (eventbus.Message, *cursor, <-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return eventbus.Message{}, nil, nil, ErrClosed
	}

	// each claim starts one topic further so a failing head cannot starve
	// the topics behind it
	start := b.rotation[groupID]
	for i := range topics {
		topic := topics[(start+i)%len(topics)]
		key := cursorKey{group: groupID, topic: topic}
		c, ok := b.cursors[key]
		if !ok {
			c = &cursor{}
			b.cursors[key] = c
		}
		log := b.logs[topic]
		if c.inflight || c.next >= int64(len(log)) {
			continue
		}
		c.inflight = true
		b.rotation[groupID] = (start + i + 1) % len(topics)
		return log[c.next], c, nil, nil
	}
	return eventbus.Message{}, nil, b.wake, nil
}

func (b *Broker) release(c *cursor, commit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c.inflight = false
	if commit {
		c.next++
	}
	b.broadcastLocked()
}

func (b *Broker) broadcastLocked() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// Close stops every Consume loop with ErrClosed and rejects new publishes.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.broadcastLocked()
	return nil
}

// SetPublishError makes every Publish fail with err until reset with nil.
func (b *Broker) SetPublishError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

// Messages returns a copy of the topic log.
func (b *Broker) Messages(topic string) []eventbus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Message(nil), b.logs[topic]...)
}

// Committed returns the next offset the group will read on topic.
func (b *Broker) Committed(groupID, topic string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.cursors[cursorKey{group: groupID, topic: topic}]; ok {
		return c.next
	}
	return 0
}

// Package kafka is the eventbus.Broker driver for Apache Kafka.
//
// Publishing uses one shared writer that partitions by key hash and waits for
// all in-sync replicas. The writer never retries; the caller decides.
//
// Consuming uses one group reader per Consume call. Offsets are committed
// in batches every CommitInterval. When a handler fails the reader is closed
// and the group re-joined after a backoff, so the broker hands out the
// failed message again from the last committed offset.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/eventbus"
)

var ErrClosed = errors.New("kafka: broker is closed")

type Config struct {
	Brokers        []string
	CommitInterval time.Duration
	WriteTimeout   time.Duration
	// MinRetryDelay and MaxRetryDelay bound the backoff between reader
	// restarts after a handler failure.
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return errs.NewValueIsRequiredError("kafka brokers")
	}
	if c.CommitInterval < 0 {
		return errs.NewValueIsOutOfRangeError("commit interval", c.CommitInterval, time.Duration(0), time.Hour)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MinRetryDelay <= 0 {
		c.MinRetryDelay = 200 * time.Millisecond
	}
	if c.MaxRetryDelay < c.MinRetryDelay {
		c.MaxRetryDelay = 30 * time.Second
	}
	return c
}

// Broker publishes and consumes through a Kafka cluster.
type Broker struct {
	cfg    Config
	writer *kafkago.Writer
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ eventbus.Broker = (*Broker)(nil)

func NewBroker(cfg Config, logger *slog.Logger) (*Broker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}
	cfg = cfg.withDefaults()

	return &Broker{
		cfg: cfg,
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			MaxAttempts:            1,
			WriteTimeout:           cfg.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
		logger: logger.With("component", "kafka"),
		done:   make(chan struct{}),
	}, nil
}

func (b *Broker) Publish(ctx context.Context, topic, key string, value []byte) error {
	if b.isClosed() {
		return ErrClosed
	}
	return b.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// Consume joins groupID on topics and blocks until ctx is cancelled or the
// broker is closed.
func (b *Broker) Consume(ctx context.Context, topics []string, groupID string, handler eventbus.RawHandler) error {
	if len(topics) == 0 {
		return errs.NewValueIsRequiredError("topics")
	}
	if groupID == "" {
		return errs.NewValueIsRequiredError("group id")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	retry := b.newBackOff()
	logger := b.logger.With("group", groupID)

	for {
		if b.isClosed() {
			return ErrClosed
		}

		progressed, err := b.consumeSession(ctx, topics, groupID, handler)
		if progressed {
			retry.Reset()
		}
		if b.isClosed() {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return nil
		}

		delay := retry.NextBackOff()
		logger.WarnContext(ctx, "Restarting group reader", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			if b.isClosed() {
				return ErrClosed
			}
			return nil
		case <-time.After(delay):
		}
	}
}

// consumeSession runs one reader until a fetch or handler error. progressed
// reports whether at least one message was handled successfully.
func (b *Broker) consumeSession(
	ctx context.Context,
	topics []string,
	groupID string,
	handler eventbus.RawHandler,
) (progressed bool, err error) {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        b.cfg.Brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		CommitInterval: b.cfg.CommitInterval,
		StartOffset:    kafkago.FirstOffset,
	})
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			b.logger.WarnContext(ctx, "Failed to close group reader", "group", groupID, "error", closeErr)
		}
	}()

	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			return progressed, fmt.Errorf("fetch: %w", err)
		}

		msg := fromKafka(km)
		if err = handler(ctx, msg); err != nil {
			return progressed, fmt.Errorf("handle %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err = reader.CommitMessages(ctx, km); err != nil {
			return progressed, fmt.Errorf("commit: %w", err)
		}
		progressed = true
	}
}

func (b *Broker) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cfg.MinRetryDelay
	eb.MaxInterval = b.cfg.MaxRetryDelay
	eb.MaxElapsedTime = 0
	return eb
}

// Close flushes the writer and stops every running Consume.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	return b.writer.Close()
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func fromKafka(m kafkago.Message) eventbus.Message {
	return eventbus.Message{
		Topic:     m.Topic,
		Key:       string(m.Key),
		Value:     m.Value,
		Partition: m.Partition,
		Offset:    m.Offset,
	}
}

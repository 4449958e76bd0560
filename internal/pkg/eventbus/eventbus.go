// Package eventbus is the typed publish/consume contract on top of an
// append-only, partitioned event log. Drivers implement Broker; services use
// Publish and Subscribe.
//
// Delivery is at-least-once. A message is marked processed only after its
// handler returned nil. Messages that cannot be decoded are logged and
// skipped, since retrying them can never succeed.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/metrics"
)

var (
	// ErrEmptyKey is returned by Publish when the partition key is empty.
	ErrEmptyKey = errs.NewValueIsRequiredError("partition key")

	// ErrDecode wraps payloads that are not valid JSON for the target type.
	ErrDecode = errors.New("event payload could not be decoded")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("event handler panicked")
)

// Message is one record read from the log.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int
	Offset    int64
}

// RawHandler processes one message. Returning an error leaves the message
// unprocessed so the broker delivers it again.
type RawHandler func(ctx context.Context, msg Message) error

// Broker is implemented by every log driver.
type Broker interface {
	// Publish appends value to topic. Messages with the same key keep their
	// relative order. Failures are returned, never retried.
	Publish(ctx context.Context, topic, key string, value []byte) error

	// Consume delivers messages of topics to handler as member of groupID
	// and blocks until ctx is cancelled or the broker fails for good.
	Consume(ctx context.Context, topics []string, groupID string, handler RawHandler) error

	Close() error
}

// Handler processes a decoded payload.
type Handler[T any] func(ctx context.Context, msg Message, payload T) error

// Publish JSON-encodes payload and appends it to topic under key.
func Publish(ctx context.Context, b Broker, topic, key string, payload any) error {
	if key == "" {
		return ErrEmptyKey
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	if err = b.Publish(ctx, topic, key, value); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Option configures Subscribe.
type Option func(*options)

type options struct {
	metrics    metrics.Sink
	maxVersion int
}

// WithMetrics reports the outcome of every message to sink.
func WithMetrics(sink metrics.Sink) Option {
	return func(o *options) { o.metrics = sink }
}

// Versioned is implemented by payloads that carry their schema version.
type Versioned interface {
	PayloadVersion() int
}

// WithMaxVersion skips Versioned payloads written with a version above v.
// A newer version may have changed the meaning of a field, so such payloads
// are logged and treated like undecodable ones.
func WithMaxVersion(v int) Option {
	return func(o *options) { o.maxVersion = v }
}

// Subscribe consumes topics as groupID, decoding each message into T. It
// returns when ctx is cancelled (nil) or the broker fails (its error).
func Subscribe[T any](
	ctx context.Context,
	b Broker,
	topics []string,
	groupID string,
	logger *slog.Logger,
	handler Handler[T],
	opts ...Option,
) error {
	o := options{metrics: metrics.Noop{}}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With("component", "subscriber", "group", groupID)
	logger.InfoContext(ctx, "Subscription started", "topics", topics)

	err := b.Consume(ctx, topics, groupID, decode(groupID, logger, o, handler))
	if err != nil && ctx.Err() == nil {
		logger.ErrorContext(ctx, "Subscription stopped", "error", err)
		return err
	}

	logger.InfoContext(ctx, "Subscription stopped")
	return nil
}

func checkVersion(payload any, maxVersion int) error {
	v, ok := payload.(Versioned)
	if !ok || maxVersion <= 0 || v.PayloadVersion() <= maxVersion {
		return nil
	}
	return errs.NewVersionIsInvalidErrorWithCause("payload version",
		fmt.Errorf("got %d, understood up to %d", v.PayloadVersion(), maxVersion))
}

// decode adapts a typed handler to a RawHandler: decode failures are logged
// and swallowed, handler errors and panics are returned for redelivery.
func decode[T any](groupID string, logger *slog.Logger, o options, handler Handler[T]) RawHandler {
	sink := o.metrics
	return func(ctx context.Context, msg Message) (err error) {
		var payload T
		decodeErr := json.Unmarshal(msg.Value, &payload)
		if decodeErr == nil {
			decodeErr = checkVersion(payload, o.maxVersion)
		}
		if decodeErr != nil {
			sink.EventConsumed(ctx, msg.Topic, groupID, metrics.OutcomeDecodeError)
			logger.ErrorContext(ctx, "Skipping undecodable event",
				"error", fmt.Errorf("%w: %w", ErrDecode, decodeErr),
				"topic", msg.Topic,
				"key", msg.Key,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return nil
		}

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				logger.ErrorContext(ctx, "Event handler panicked",
					"panic", r,
					"topic", msg.Topic,
					"key", msg.Key,
					"stack", string(debug.Stack()),
				)
			}
			outcome := metrics.OutcomeOK
			if err != nil {
				outcome = metrics.OutcomeHandlerError
			}
			sink.EventConsumed(ctx, msg.Topic, groupID, outcome)
		}()

		if err = handler(ctx, msg, payload); err != nil {
			logger.WarnContext(ctx, "Event handler failed, message will be redelivered",
				"error", err,
				"topic", msg.Topic,
				"key", msg.Key,
				"offset", msg.Offset,
			)
		}
		return err
	}
}

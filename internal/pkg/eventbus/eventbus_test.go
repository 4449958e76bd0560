package eventbus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"orderflow/internal/adapters/out/membus"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderEvent struct {
	OrderID string `json:"orderId"`
	Seq     int    `json:"seq"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// subscribe runs Subscribe in the background and returns a stop function
// that cancels it and waits for it to return.
func subscribe[T any](
	t *testing.T,
	b eventbus.Broker,
	topics []string,
	group string,
	handler eventbus.Handler[T],
) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- eventbus.Subscribe(ctx, b, topics, group, discardLogger(), handler)
	}()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("subscription did not stop")
			return nil
		}
	}
}

func TestPublish_EmptyKey(t *testing.T) {
	b := membus.New()

	err := eventbus.Publish(context.Background(), b, "order-created", "", orderEvent{OrderID: "1"})

	require.ErrorIs(t, err, eventbus.ErrEmptyKey)
	require.ErrorIs(t, err, errs.ErrValueIsRequired)
	assert.Empty(t, b.Messages("order-created"))
}

func TestPublish_EncodesJSON(t *testing.T) {
	b := membus.New()

	require.NoError(t, eventbus.Publish(context.Background(), b, "order-created", "o-1", orderEvent{OrderID: "o-1", Seq: 3}))

	msgs := b.Messages("order-created")
	require.Len(t, msgs, 1)
	assert.Equal(t, "o-1", msgs[0].Key)
	assert.JSONEq(t, `{"orderId":"o-1","seq":3}`, string(msgs[0].Value))
}

func TestPublish_EncodeFailure(t *testing.T) {
	b := membus.New()

	err := eventbus.Publish(context.Background(), b, "order-created", "o-1", make(chan int))

	require.Error(t, err)
	assert.Empty(t, b.Messages("order-created"))
}

func TestPublish_BrokerFailureIsReturned(t *testing.T) {
	b := membus.New()
	brokerErr := errors.New("no leader")
	b.SetPublishError(brokerErr)

	err := eventbus.Publish(context.Background(), b, "order-created", "o-1", orderEvent{})

	require.ErrorIs(t, err, brokerErr)
}

func TestSubscribe_SkipsUndecodableAndContinues(t *testing.T) {
	ctx := context.Background()
	b := membus.New()
	require.NoError(t, b.Publish(ctx, "order-ready", "o-1", []byte("{not json")))
	require.NoError(t, eventbus.Publish(ctx, b, "order-ready", "o-2", orderEvent{OrderID: "o-2"}))

	got := make(chan orderEvent, 2)
	stop := subscribe(t, b, []string{"order-ready"}, "g", func(_ context.Context, _ eventbus.Message, e orderEvent) error {
		got <- e
		return nil
	})

	select {
	case e := <-got:
		assert.Equal(t, "o-2", e.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("valid message was not delivered")
	}
	require.NoError(t, stop())
	assert.Equal(t, int64(2), b.Committed("g", "order-ready"), "undecodable message is committed")
}

type versionedEvent struct {
	Version int    `json:"version"`
	OrderID string `json:"orderId"`
}

func (e versionedEvent) PayloadVersion() int { return e.Version }

type outcomeSink struct {
	metrics.Noop
	mu       sync.Mutex
	outcomes []string
}

func (s *outcomeSink) EventConsumed(_ context.Context, _, _, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func TestSubscribe_SkipsNewerPayloadVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := membus.New()
	require.NoError(t, eventbus.Publish(ctx, b, "order-ready", "o-1", versionedEvent{Version: 2, OrderID: "o-1"}))
	require.NoError(t, eventbus.Publish(ctx, b, "order-ready", "o-2", versionedEvent{Version: 1, OrderID: "o-2"}))

	sink := &outcomeSink{}
	got := make(chan versionedEvent, 2)
	done := make(chan error, 1)
	go func() {
		done <- eventbus.Subscribe(ctx, b, []string{"order-ready"}, "g", discardLogger(),
			func(_ context.Context, _ eventbus.Message, e versionedEvent) error {
				got <- e
				return nil
			},
			eventbus.WithMetrics(sink),
			eventbus.WithMaxVersion(1),
		)
	}()

	select {
	case e := <-got:
		assert.Equal(t, "o-2", e.OrderID, "newer version is skipped")
	case <-time.After(2 * time.Second):
		t.Fatal("supported message was not delivered")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int64(2), b.Committed("g", "order-ready"), "skipped message is committed")
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{metrics.OutcomeDecodeError, metrics.OutcomeOK}, sink.outcomes)
}

func TestSubscribe_HandlerErrorRedelivers(t *testing.T) {
	ctx := context.Background()
	b := membus.New(membus.WithRetryDelay(time.Millisecond))
	require.NoError(t, eventbus.Publish(ctx, b, "order-accepted", "o-1", orderEvent{OrderID: "o-1"}))

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})
	stop := subscribe(t, b, []string{"order-accepted"}, "g", func(_ context.Context, _ eventbus.Message, _ orderEvent) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("registry busy")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not redelivered")
	}
	require.NoError(t, stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(1), b.Committed("g", "order-accepted"))
}

func TestSubscribe_PanicIsRecoveredAndRedelivered(t *testing.T) {
	ctx := context.Background()
	b := membus.New(membus.WithRetryDelay(time.Millisecond))
	require.NoError(t, eventbus.Publish(ctx, b, "order-accepted", "o-1", orderEvent{OrderID: "o-1"}))

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})
	stop := subscribe(t, b, []string{"order-accepted"}, "g", func(_ context.Context, _ eventbus.Message, _ orderEvent) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			panic("nil socket")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not redelivered after panic")
	}
	require.NoError(t, stop())
}

func TestSubscribe_PreservesPerKeyOrder(t *testing.T) {
	ctx := context.Background()
	b := membus.New()
	for i := range 20 {
		require.NoError(t, eventbus.Publish(ctx, b, "order-ready", "o-1", orderEvent{OrderID: "o-1", Seq: i}))
	}

	got := make(chan int, 20)
	stop := subscribe(t, b, []string{"order-ready"}, "g", func(_ context.Context, _ eventbus.Message, e orderEvent) error {
		got <- e.Seq
		return nil
	})

	for want := range 20 {
		select {
		case seq := <-got:
			require.Equal(t, want, seq)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing message %d", want)
		}
	}
	require.NoError(t, stop())
}

func TestSubscribe_EveryGroupGetsEveryMessage(t *testing.T) {
	ctx := context.Background()
	b := membus.New()

	agents := make(chan string, 1)
	customers := make(chan string, 1)
	stopAgents := subscribe(t, b, []string{"agent-assigned"}, "agents.agent-assigned",
		func(_ context.Context, m eventbus.Message, _ orderEvent) error { agents <- m.Key; return nil })
	stopCustomers := subscribe(t, b, []string{"agent-assigned"}, "customers.agent-assigned",
		func(_ context.Context, m eventbus.Message, _ orderEvent) error { customers <- m.Key; return nil })

	require.NoError(t, eventbus.Publish(ctx, b, "agent-assigned", "o-9", orderEvent{OrderID: "o-9"}))

	for _, ch := range []chan string{agents, customers} {
		select {
		case key := <-ch:
			assert.Equal(t, "o-9", key)
		case <-time.After(2 * time.Second):
			t.Fatal("group did not receive the message")
		}
	}
	require.NoError(t, stopAgents())
	require.NoError(t, stopCustomers())
}

func TestSubscribe_ReturnsBrokerError(t *testing.T) {
	b := membus.New()
	require.NoError(t, b.Close())

	err := eventbus.Subscribe(context.Background(), b, []string{"order-ready"}, "g", discardLogger(),
		func(context.Context, eventbus.Message, orderEvent) error { return nil })

	require.ErrorIs(t, err, membus.ErrClosed)
}

package commands_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/domain/events"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct{ mock.Mock }

func (m *MockOrderRepository) Add(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

type MockTransitionRepository struct{ mock.Mock }

func (m *MockTransitionRepository) Append(ctx context.Context, r ports.TransitionRecord) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockTransitionRepository) MarkPublished(ctx context.Context, id kernel.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockTransitionRepository) ListUnpublished(
	ctx context.Context, before time.Time, limit int,
) ([]ports.TransitionRecord, error) {
	args := m.Called(ctx, before, limit)
	records, _ := args.Get(0).([]ports.TransitionRecord)
	return records, args.Error(1)
}

type MockOrderUoW struct{ mock.Mock }

func (m *MockOrderUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOrderUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOrderUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOrderUoW) OrderRepository() ports.OrderRepository {
	args := m.Called()
	return args.Get(0).(ports.OrderRepository)
}

func (m *MockOrderUoW) TransitionRepository() ports.TransitionRepository {
	args := m.Called()
	return args.Get(0).(ports.TransitionRepository)
}

type MockOrderUoWFactory struct{ mock.Mock }

func (m *MockOrderUoWFactory) Create() commands.OrderUoW {
	args := m.Called()
	return args.Get(0).(commands.OrderUoW)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) Publish(ctx context.Context, e events.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// recordingSink counts the metrics the handlers report.
type recordingSink struct {
	mu              sync.Mutex
	transitions     []string
	publishFailures []string
}

func (s *recordingSink) TransitionApplied(_ context.Context, transition string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, transition)
}

func (s *recordingSink) PublishFailed(_ context.Context, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishFailures = append(s.publishFailures, topic)
}

func (s *recordingSink) EventConsumed(context.Context, string, string, string) {}
func (s *recordingSink) PushAttempted(context.Context, string, string, string) {}
func (s *recordingSink) ConnectionsSwept(context.Context, string, int)         {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustActor(role order.Role, id kernel.UUID, name string) order.Actor {
	a, err := order.NewActor(role, id, name)
	if err != nil {
		panic(err)
	}
	return a
}

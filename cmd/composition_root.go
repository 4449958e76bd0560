package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"orderflow/internal/adapters/in/auth"
	"orderflow/internal/adapters/in/consumers"
	httpin "orderflow/internal/adapters/in/http"
	"orderflow/internal/adapters/in/ws"
	"orderflow/internal/adapters/out/eventlog"
	"orderflow/internal/adapters/out/kafka"
	"orderflow/internal/adapters/out/membus"
	"orderflow/internal/adapters/out/notify"
	"orderflow/internal/adapters/out/postgres"
	"orderflow/internal/adapters/out/postgres/transitionrepo"
	"orderflow/internal/adapters/out/redisstream"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/jobs"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/realtime"
)

const meterName = "orderflow"

// CompositionRoot owns every long-lived dependency of the process. Only the
// services enabled in Config are wired; the rest stay nil.
type CompositionRoot struct {
	cfg    Config
	logger *slog.Logger

	gormDB     *gorm.DB
	uowFactory *postgres.GormUnitOfWorkFactory

	broker    eventbus.Broker
	publisher *eventlog.Publisher
	metrics   metrics.Sink
	verifier  *auth.Verifier

	registries ws.Registries
	shutdown   context.Context
}

// NewCompositionRoot connects to the database and the event log. Open
// sockets are closed once shutdown is done.
func NewCompositionRoot(shutdown context.Context, cfg Config, logger *slog.Logger) (*CompositionRoot, error) {
	sink, err := metrics.NewOTel(otel.GetMeterProvider().Meter(meterName))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, time.Now)
	if err != nil {
		return nil, err
	}

	broker, err := newBroker(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect %s event log: %w", cfg.BusDriver, err)
	}
	publisher, err := eventlog.NewPublisher(broker)
	if err != nil {
		return nil, errors.Join(err, broker.Close())
	}

	c := &CompositionRoot{
		cfg:       cfg,
		logger:    logger,
		broker:    broker,
		publisher: publisher,
		metrics:   sink,
		verifier:  verifier,
		shutdown:  shutdown,
	}

	if cfg.Runs(ServiceOrdering) {
		if c.gormDB, err = openDB(cfg); err != nil {
			return nil, errors.Join(err, broker.Close())
		}
		c.uowFactory = postgres.NewGormUnitOfWorkFactory(c.gormDB)
	}

	registry := func(service string) *realtime.Registry {
		if !cfg.Runs(service) {
			return nil
		}
		return realtime.NewRegistry(service, logger, realtime.WithMetrics(sink))
	}
	c.registries = ws.Registries{
		Agents:    registry(consumers.ServiceAgents),
		Partners:  registry(consumers.ServicePartners),
		Customers: registry(consumers.ServiceCustomers),
	}

	return c, nil
}

func openDB(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(gormpostgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err = postgres.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func newBroker(cfg Config, logger *slog.Logger) (eventbus.Broker, error) {
	switch cfg.BusDriver {
	case BusKafka:
		b, err := kafka.NewBroker(kafka.Config{
			Brokers:        cfg.KafkaBrokers,
			CommitInterval: cfg.KafkaCommitInterval,
			WriteTimeout:   cfg.KafkaWriteTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BusRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		b, err := redisstream.NewBroker(client, redisstream.Config{
			Consumer: cfg.RedisConsumer,
			Shards:   cfg.RedisShards,
			LeaseTTL: cfg.RedisLeaseTTL,
			Block:    cfg.RedisBlock,
		}, logger)
		if err != nil {
			return nil, errors.Join(err, client.Close())
		}
		return b, nil
	case BusMemory:
		return membus.New(), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.BusDriver)
	}
}

func (c *CompositionRoot) orderUoWFactory() commands.OrderUoWFactory {
	return FuncOrderUoWFactory(func() commands.OrderUoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) CreateCreateOrderCommandHandler() *commands.CreateOrderCommandHandler {
	h := commands.NewCreateOrderCommandHandler(c.orderUoWFactory(), c.publisher, c.metrics, c.logger)
	return &h
}

func (c *CompositionRoot) CreateTransitionOrderCommandHandler() *commands.TransitionOrderCommandHandler {
	h := commands.NewTransitionOrderCommandHandler(c.orderUoWFactory(), c.publisher, c.metrics, c.logger)
	return &h
}

func (c *CompositionRoot) CreateGetOrderQueryHandler() queries.GetOrderQueryHandler {
	return queries.NewGetOrderQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateGetActiveOrdersQueryHandler() queries.GetActiveOrdersQueryHandler {
	return queries.NewGetActiveOrdersQueryHandler(c.gormDB)
}

// RegisterRoutes mounts the health probe, the REST API and the WebSocket
// endpoints of the enabled services.
func (c *CompositionRoot) RegisterRoutes(e *echo.Echo) error {
	httpin.RegisterHealth(e)
	if c.cfg.Runs(ServiceOrdering) {
		httpin.NewServer(
			c.verifier,
			c.CreateCreateOrderCommandHandler(),
			c.CreateTransitionOrderCommandHandler(),
			c.CreateGetOrderQueryHandler(),
			c.CreateGetActiveOrdersQueryHandler(),
		).RegisterRoutes(e)
	}

	sockets, err := ws.NewServer(c.shutdown, c.registries, c.verifier, c.logger)
	if err != nil {
		return err
	}
	sockets.RegisterRoutes(e)
	return nil
}

// CreateConsumers subscribes the pushers of every enabled consumer service.
func (c *CompositionRoot) CreateConsumers() (*consumers.Consumers, error) {
	cs := consumers.New(c.broker, c.logger, c.metrics)
	if reg := c.registries.Agents; reg != nil {
		cs.Agents(reg)
	}
	if reg := c.registries.Partners; reg != nil {
		cs.Partners(reg)
	}
	if reg := c.registries.Customers; reg != nil {
		dispatcher, err := services.NewNotificationDispatcher(notify.Senders(c.logger))
		if err != nil {
			return nil, err
		}
		cs.Customers(reg, dispatcher)
	}
	return cs, nil
}

// CreateJobManager schedules the sweep over every registry and, with a
// database, the unpublished transitions monitor.
func (c *CompositionRoot) CreateJobManager() *jobs.JobManager {
	var sweepers []jobs.Sweeper
	for _, reg := range []*realtime.Registry{c.registries.Agents, c.registries.Partners, c.registries.Customers} {
		if reg != nil {
			sweepers = append(sweepers, reg)
		}
	}

	scheduled := []jobs.Job{jobs.NewConnectionSweepJob(c.cfg.SweepSchedule, c.logger, sweepers...)}
	if c.gormDB != nil {
		scheduled = append(scheduled, jobs.NewUnpublishedTransitionsJob(
			transitionrepo.NewGormTransitionRepository(c.gormDB),
			c.cfg.UnpublishedSchedule,
			c.cfg.UnpublishedGrace,
			c.logger,
		))
	}
	return jobs.NewJobManager(scheduled...)
}

// Close releases the event log and the database. Call it after consumers
// returned.
func (c *CompositionRoot) Close() error {
	err := c.broker.Close()
	if c.gormDB != nil {
		if sqlDB, dbErr := c.gormDB.DB(); dbErr == nil {
			err = errors.Join(err, sqlDB.Close())
		}
	}
	return err
}

type FuncOrderUoWFactory func() commands.OrderUoW

func (f FuncOrderUoWFactory) Create() commands.OrderUoW {
	return f()
}

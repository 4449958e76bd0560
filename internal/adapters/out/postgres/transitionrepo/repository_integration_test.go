package transitionrepo_test

import (
	"context"
	"testing"
	"time"

	"orderflow/internal/adapters/out/postgres/transitionrepo"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TransitionRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *transitionrepo.GormTransitionRepository
}

func (suite *TransitionRepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&transitionrepo.TransitionDTO{}))
}

func (suite *TransitionRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE order_transitions").Error)
	suite.repository = transitionrepo.NewGormTransitionRepository(suite.db)
}

func (suite *TransitionRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *TransitionRepositoryIntegrationTestSuite) TestListUnpublished_OldestFirstAndBounded() {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	orderID := kernel.NewUUID()

	var ids []kernel.UUID
	for i := range 4 {
		rec := record(orderID, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, rec.ID)
		suite.Require().NoError(suite.repository.Append(ctx, rec))
	}
	suite.Require().NoError(suite.repository.MarkPublished(ctx, ids[0], base.Add(time.Hour)))

	got, err := suite.repository.ListUnpublished(ctx, base.Add(3*time.Minute), 10)
	suite.Require().NoError(err)
	suite.Require().Len(got, 2)
	suite.Equal(ids[1], got[0].ID)
	suite.Equal(ids[2], got[1].ID)
	suite.Nil(got[0].PublishedAt)
	suite.Equal("accept", got[0].Transition)

	limited, err := suite.repository.ListUnpublished(ctx, base.Add(time.Hour), 1)
	suite.Require().NoError(err)
	suite.Require().Len(limited, 1)
	suite.Equal(ids[1], limited[0].ID)
}

func (suite *TransitionRepositoryIntegrationTestSuite) TestMarkPublished_IsIdempotent() {
	ctx := context.Background()
	rec := record(kernel.NewUUID(), time.Now().Add(-time.Minute))
	suite.Require().NoError(suite.repository.Append(ctx, rec))

	suite.Require().NoError(suite.repository.MarkPublished(ctx, rec.ID, time.Now()))
	suite.Require().NoError(suite.repository.MarkPublished(ctx, rec.ID, time.Now()))

	got, err := suite.repository.ListUnpublished(ctx, time.Now(), 10)
	suite.Require().NoError(err)
	suite.Empty(got)
}

func (suite *TransitionRepositoryIntegrationTestSuite) TestMarkPublished_Unknown_ReturnsNotFound() {
	err := suite.repository.MarkPublished(context.Background(), kernel.NewUUID(), time.Now())
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *TransitionRepositoryIntegrationTestSuite) TestAppend_RequiresIDs() {
	err := suite.repository.Append(context.Background(), ports.TransitionRecord{OrderID: kernel.NewUUID()})
	suite.Require().ErrorIs(err, errs.ErrValueIsRequired)
}

func (suite *TransitionRepositoryIntegrationTestSuite) TestListUnpublished_RejectsNonPositiveLimit() {
	_, err := suite.repository.ListUnpublished(context.Background(), time.Now(), 0)
	suite.Require().ErrorIs(err, errs.ErrValueIsOutOfRange)
}

func record(orderID kernel.UUID, at time.Time) ports.TransitionRecord {
	return ports.TransitionRecord{
		ID:         kernel.NewUUID(),
		OrderID:    orderID,
		Transition: "accept",
		Status:     "accepted",
		Topic:      "order-accepted",
		Actor:      "partner:1",
		OccurredAt: at,
	}
}

func TestTransitionRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(TransitionRepositoryIntegrationTestSuite))
}

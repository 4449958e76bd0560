package jobs

import (
	"context"
	"log/slog"
	"time"

	"orderflow/internal/core/ports"

	"github.com/robfig/cron/v3"
)

const defaultUnpublishedLimit = 100

// UnpublishedLister reads transitions whose event was never acknowledged.
type UnpublishedLister interface {
	ListUnpublished(ctx context.Context, occurredBefore time.Time, limit int) ([]ports.TransitionRecord, error)
}

// UnpublishedTransitionsJob reports committed transitions whose event never
// reached the log. It does not republish: consumers would see the event out
// of order relative to later transitions of the same order.
type UnpublishedTransitionsJob struct {
	repo     UnpublishedLister
	grace    time.Duration
	limit    int
	schedule string
	now      func() time.Time
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewUnpublishedTransitionsJob creates the monitor. Records younger than
// grace are skipped since their publish may still be in flight.
func NewUnpublishedTransitionsJob(
	repo UnpublishedLister,
	schedule string,
	grace time.Duration,
	logger *slog.Logger,
) *UnpublishedTransitionsJob {
	return &UnpublishedTransitionsJob{
		repo:     repo,
		grace:    grace,
		limit:    defaultUnpublishedLimit,
		schedule: schedule,
		now:      time.Now,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger.With("component", "unpublished_transitions_job"),
	}
}

// Run checks once and returns the unpublished records it found.
func (j *UnpublishedTransitionsJob) Run(ctx context.Context) ([]ports.TransitionRecord, error) {
	records, err := j.repo.ListUnpublished(ctx, j.now().Add(-j.grace), j.limit)
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		j.logger.WarnContext(ctx, "Transition was never published",
			"transition_id", r.ID.String(),
			"order_id", r.OrderID.String(),
			"transition", r.Transition,
			"topic", r.Topic,
			"occurred_at", r.OccurredAt,
		)
	}
	if len(records) == j.limit {
		j.logger.WarnContext(ctx, "Unpublished transitions truncated", "limit", j.limit)
	}
	return records, nil
}

// Start schedules the check.
func (j *UnpublishedTransitionsJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx := context.Background()
		if _, err := j.Run(ctx); err != nil {
			j.logger.ErrorContext(ctx, "Unpublished transitions check failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Unpublished transitions job started", "schedule", j.schedule)
	return nil
}

// Stop stops the schedule and waits for a running check.
func (j *UnpublishedTransitionsJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Unpublished transitions job stopped")
}

package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper is a connection registry that can drop its closed sockets.
type Sweeper interface {
	Audience() string
	Sweep(ctx context.Context) int
	Counts() (personal, broadcast int)
}

// ConnectionSweepJob removes registry entries whose socket closed without
// the disconnect path running, e.g. after a write deadline expired.
type ConnectionSweepJob struct {
	registries []Sweeper
	schedule   string
	cron       *cron.Cron
	logger     *slog.Logger
}

// NewConnectionSweepJob creates a job sweeping every registry on schedule,
// a six-field cron expression or a descriptor such as "@every 30s".
func NewConnectionSweepJob(schedule string, logger *slog.Logger, registries ...Sweeper) *ConnectionSweepJob {
	return &ConnectionSweepJob{
		registries: registries,
		schedule:   schedule,
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger.With("component", "connection_sweep_job"),
	}
}

// Run sweeps every registry once and returns the number of removed entries.
func (j *ConnectionSweepJob) Run(ctx context.Context) int {
	total := 0
	for _, r := range j.registries {
		removed := r.Sweep(ctx)
		total += removed
		if removed > 0 {
			personal, broadcast := r.Counts()
			j.logger.InfoContext(ctx, "Swept closed connections",
				"audience", r.Audience(),
				"removed", removed,
				"personal", personal,
				"broadcast", broadcast,
			)
		}
	}
	return total
}

// Start schedules the sweep.
func (j *ConnectionSweepJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		j.Run(context.Background())
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Connection sweep job started", "schedule", j.schedule)
	return nil
}

// Stop stops the schedule and waits for a running sweep.
func (j *ConnectionSweepJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Connection sweep job stopped")
}

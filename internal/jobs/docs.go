// Package jobs provides scheduled background tasks for the ordering service.
//
// This package implements cron-based jobs using github.com/robfig/cron/v3.
// Schedules accept six fields (seconds first) or descriptors like "@every 30s".
//
// # Available Jobs
//
// 1. ConnectionSweepJob - Drops registry entries whose WebSocket closed
// without the disconnect path running
// 2. UnpublishedTransitionsJob - Warns about committed transitions whose
// event the broker never acknowledged
//
// # Usage
//
// Jobs are managed through JobManager which provides a unified interface:
//
//	jobManager := jobs.NewJobManager(
//		jobs.NewConnectionSweepJob("@every 30s", logger, agents, partners, customers),
//		jobs.NewUnpublishedTransitionsJob(transitions, "@every 1m", time.Minute, logger),
//	)
//
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//	defer jobManager.StopAll()
//
// # Error Handling
//
// - Sweeping cannot fail; removals are logged and counted
// - A failed unpublished check is logged and retried on the next tick
// - Failed job starts will stop any already running jobs, in reverse order
package jobs

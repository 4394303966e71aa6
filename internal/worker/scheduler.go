// ABOUTME: Cron scheduler for recurring report jobs: loads enabled
// ABOUTME: scheduled_reports rows and enqueues report_generation on schedule.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tryinhard1080/wastewise/internal/store"
)

// ScheduleStore is the store surface the scheduler needs.
type ScheduleStore interface {
	ListScheduledReports(ctx context.Context) ([]store.ScheduledReport, error)
	EnqueueJob(ctx context.Context, jobType store.JobType, propertyID, requestedBy uuid.UUID, payload json.RawMessage, maxAttempts int) (uuid.UUID, error)
}

// Scheduler owns the cron runner for recurring reports. Schedules are read
// once at startup; changing a schedule requires a worker restart.
type Scheduler struct {
	store       ScheduleStore
	cron        *cron.Cron
	maxAttempts int
	log         *slog.Logger
}

// NewScheduler returns a stopped scheduler.
func NewScheduler(st ScheduleStore, maxAttempts int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:       st,
		cron:        cron.New(),
		maxAttempts: maxAttempts,
		log:         logger,
	}
}

// Start loads enabled schedules, registers their cron entries, and runs the
// cron loop until ctx is cancelled. An invalid cron spec skips that schedule
// rather than failing startup.
func (s *Scheduler) Start(ctx context.Context) error {
	schedules, err := s.store.ListScheduledReports(ctx)
	if err != nil {
		return err
	}

	for _, sched := range schedules {
		sched := sched
		_, err := s.cron.AddFunc(sched.CronSpec, func() {
			s.enqueue(ctx, sched)
		})
		if err != nil {
			s.log.Error("invalid cron spec, schedule skipped",
				"schedule_id", sched.ID, "spec", sched.CronSpec, "error", err)
			continue
		}
		s.log.Info("report schedule registered",
			"schedule_id", sched.ID, "property_id", sched.PropertyID, "spec", sched.CronSpec)
	}

	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return nil
}

func (s *Scheduler) enqueue(ctx context.Context, sched store.ScheduledReport) {
	id, err := s.store.EnqueueJob(ctx, store.JobTypeReportGeneration,
		sched.PropertyID, sched.RequestedBy, nil, s.maxAttempts)
	if err != nil {
		s.log.Error("enqueue scheduled report",
			"schedule_id", sched.ID, "property_id", sched.PropertyID, "error", err)
		return
	}
	s.log.Info("scheduled report enqueued",
		"schedule_id", sched.ID, "job_id", id)
}

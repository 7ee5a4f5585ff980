package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Job for the previous day on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	job     *Job
	loc     *time.Location
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler parses a standard five-field cron spec evaluated in loc.
func NewScheduler(spec string, loc *time.Location, job *Job, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		job:     job,
		loc:     loc,
		timeout: 10 * time.Minute,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("daily aggregator scheduled", "next", s.Next())
	s.cron.Start()
}

// Stop prevents further runs and waits for a running one to finish or for
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("daily aggregator still running at shutdown")
	}
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.loc))
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.job.RunYesterday(ctx)
	if err != nil {
		s.logger.Error("daily aggregator failed", "day", res.Day, "error", err)
		return
	}
	s.logger.Info("daily aggregator finished", "day", res.Day, "outcome", res.Outcome)
}

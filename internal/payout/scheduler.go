package payout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const weeklyJobName = "weekly-payouts"

type ScheduleConfig struct {
	Location *time.Location
	Weekday  time.Weekday
	Hour     uint
	Minute   uint
}

// Scheduler fires DispatchPayouts for the previous week on a fixed weekly slot.
type Scheduler struct {
	scheduler gocron.Scheduler
	engine    EngineAPI
	logger    *slog.Logger
}

func NewScheduler(engine EngineAPI, cfg ScheduleConfig, logger *slog.Logger) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	sched := &Scheduler{scheduler: s, engine: engine, logger: logger}
	_, err = s.NewJob(
		gocron.WeeklyJob(1,
			gocron.NewWeekdays(cfg.Weekday),
			gocron.NewAtTimes(gocron.NewAtTime(cfg.Hour, cfg.Minute, 0)),
		),
		gocron.NewTask(sched.run),
		gocron.WithName(weeklyJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("register %s job: %w", weeklyJobName, err)
	}
	return sched, nil
}

func (s *Scheduler) run(ctx context.Context) {
	s.logger.Info("scheduled payout run starting")
	report, err := s.engine.DispatchPayouts(ctx, time.Time{}, nil)
	if err != nil {
		s.logger.Error("scheduled payout run failed", "error", err)
		return
	}
	s.logger.Info("scheduled payout run finished",
		"period_end", report.PeriodEnd,
		"successes", len(report.Successes),
		"errors", len(report.Errors))
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) weeklyJob() (gocron.Job, error) {
	for _, job := range s.scheduler.Jobs() {
		if job.Name() == weeklyJobName {
			return job, nil
		}
	}
	return nil, fmt.Errorf("job %s not registered", weeklyJobName)
}

// NextRun reports when the weekly job fires next.
func (s *Scheduler) NextRun() (time.Time, error) {
	job, err := s.weeklyJob()
	if err != nil {
		return time.Time{}, err
	}
	return job.NextRun()
}

// RunNow triggers the weekly job out of schedule. The scheduler must be started.
func (s *Scheduler) RunNow() error {
	job, err := s.weeklyJob()
	if err != nil {
		return err
	}
	return job.RunNow()
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

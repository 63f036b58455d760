package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/citystash/pickup-sms/config"
	"github.com/citystash/pickup-sms/utils"
)

// Scheduler owns the recurring triggers: the review job at a fixed
// time-of-day and the locker job at a fixed minute of every hour, both in the
// service timezone. Manual triggers share the same JobRunner, so timer and
// operator runs behave identically.
type Scheduler struct {
	runner *JobRunner
	cfg    config.SchedulerConfig
	logger *log.Logger
}

func NewScheduler(runner *JobRunner, cfg config.SchedulerConfig, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{runner: runner, cfg: cfg, logger: logger}
}

// Start launches the trigger loops in background goroutines and returns a
// stop function.
func (s *Scheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	if s.cfg.ReviewJobEnabled {
		hour, minute, err := config.ParseSendTime(s.cfg.ReviewJobSendTime)
		if err != nil {
			// Config validation rejects bad values at startup; this is a
			// safety net for programmatic construction.
			s.logger.Printf("scheduler: invalid review job send time %q, daily trigger disabled: %v", s.cfg.ReviewJobSendTime, err)
		} else {
			go s.runLoop(ctx, string(FeatureReviewRequest), s.cfg.ReviewJobRunOnStart, func(now time.Time) time.Time {
				return nextDailyAt(now, hour, minute)
			})
		}
	}

	if s.cfg.LockerJobEnabled {
		go s.runLoop(ctx, string(FeatureLockerReminder), s.cfg.LockerJobRunOnStart, func(now time.Time) time.Time {
			return nextHourlyAt(now, s.cfg.LockerJobMinute)
		})
	}

	return cancel
}

func (s *Scheduler) runLoop(ctx context.Context, feature string, runOnStart bool, next func(time.Time) time.Time) {
	if runOnStart {
		s.trigger(ctx, feature)
	}

	for {
		wait := time.Until(next(utils.UTCNow()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.trigger(ctx, feature)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, feature string) {
	s.logger.Printf("scheduler: triggering %s", feature)
	counts, err := s.runner.Run(ctx, feature, RunOptions{})
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Printf("scheduler: %s skipped, previous run still holds the lock", feature)
			return
		}
		s.logger.Printf("scheduler: %s run failed: %v", feature, err)
		return
	}
	s.logger.Printf("scheduler: %s done fetched=%d sent=%d skipped=%d failed=%d",
		feature, counts.Fetched, counts.Sent, counts.Skipped(), counts.Failed)
}

// nextDailyAt returns the next occurrence of hour:minute in the service
// timezone strictly after now.
func nextDailyAt(now time.Time, hour, minute int) time.Time {
	loc := utils.ServiceLocation()
	n := now.In(loc)
	candidate := time.Date(n.Year(), n.Month(), n.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(n) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// nextHourlyAt returns the next occurrence of the given minute-of-hour in the
// service timezone strictly after now.
func nextHourlyAt(now time.Time, minute int) time.Time {
	loc := utils.ServiceLocation()
	n := now.In(loc)
	candidate := time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), minute, 0, 0, loc)
	if !candidate.After(n) {
		candidate = candidate.Add(time.Hour)
	}
	return candidate
}

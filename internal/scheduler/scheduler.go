// Package scheduler runs periodic scans on a cron schedule, skipping days
// the exchange is closed.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/markethours"
)

// Skip reasons reported to OnSkip.
const (
	SkipMarketClosed = "market_closed"
	SkipInProgress   = "in_progress"
)

// DefaultSpec runs at 16:05 exchange time on weekdays, after the NSE close.
const DefaultSpec = "5 16 * * 1-5"

// Scheduler manages the scan cron task.
type Scheduler struct {
	Cron *cron.Cron

	ctx     context.Context
	cal     *markethours.Calendar
	run     func(ctx context.Context)
	running atomic.Bool
	now     func() time.Time
	log     zerolog.Logger

	// OnSkip, when set, is called for every skipped tick.
	OnSkip func(reason string)
}

// New creates a scheduler whose jobs run run(ctx) in the calendar's time zone.
// Specs accept five fields or six with leading seconds, plus descriptors
// such as "@hourly".
func New(ctx context.Context, cal *markethours.Calendar, run func(ctx context.Context)) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		Cron: cron.New(cron.WithLocation(cal.Location()), cron.WithParser(parser)),
		ctx:  ctx,
		cal:  cal,
		run:  run,
		now:  time.Now,
		log:  logger.Component("scheduler"),
	}
}

// Register schedules a scan at spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, func() { s.Trigger() }); err != nil {
		return fmt.Errorf("register scan task %q: %w", spec, err)
	}
	s.log.Info().Str("spec", spec).Str("calendar", s.cal.Name()).Msg("scan scheduled")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Next returns the time of the next scheduled scan, or zero if none.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.Cron.Entries() {
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// Trigger runs one scan now unless the exchange is closed today or a scan is
// already running. It reports whether the scan ran.
func (s *Scheduler) Trigger() bool {
	now := s.now()
	if !s.cal.IsTradingDay(now) {
		s.skip(SkipMarketClosed, now)
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.skip(SkipInProgress, now)
		return false
	}
	defer s.running.Store(false)

	ctx := logger.WithTraceID(s.ctx, logger.NewTraceID())
	logger.Ctx(ctx, s.log).Info().Msg("running scheduled scan")
	s.run(ctx)
	return true
}

func (s *Scheduler) skip(reason string, now time.Time) {
	s.log.Info().Str("reason", reason).Str("status", s.cal.StatusString(now)).Msg("scheduled scan skipped")
	if s.OnSkip != nil {
		s.OnSkip(reason)
	}
}

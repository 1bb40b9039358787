package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/pkg/logger"
	"github.com/jwalitptl/collections-notifier/pkg/metrics"
)

// ErrSweepInFlight is returned by RunNow when a sweep is already running;
// overlapping runs are skipped, never queued.
var ErrSweepInFlight = errors.New("a sweep is already in flight")

// Runner executes one scan+dispatch cycle.
type Runner interface {
	RunSweep(ctx context.Context) (*model.RunReport, error)
}

// FireInfo is the status surface exposed over the control API.
type FireInfo struct {
	NextFire  time.Time     `json:"next_fire,omitempty"`
	Remaining time.Duration `json:"remaining,omitempty"`
	Active    bool          `json:"active"`
}

// Scheduler owns the recurring-trigger state machine: Idle -> Armed ->
// Firing -> Armed. A single timer is armed at a time; timer fires and
// manual triggers share one single-flight guard so two sweeps can never
// run concurrently. Stop only cancels future fires; an in-flight sweep
// runs to completion.
type Scheduler struct {
	mu         sync.Mutex
	cfg        model.ScheduleConfig
	timer      *time.Timer
	nextFire   time.Time
	active     bool
	lastReport *model.RunReport

	inFlight atomic.Bool
	now      func() time.Time
	loc      *time.Location
	runner   Runner
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func New(cfg model.ScheduleConfig, loc *time.Location, runner Runner, log *logger.Logger, m *metrics.Metrics) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:     cfg,
		now:     time.Now,
		loc:     loc,
		runner:  runner,
		logger:  log,
		metrics: m,
	}, nil
}

// SetNowFunc injects a deterministic time source. Test hook.
func (s *Scheduler) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Start arms the timer for the next computed fire time. Calling Start on
// an armed scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.active = true
	s.armLocked()
	s.logger.Info("scheduler started", "next_fire", s.nextFire.Format(time.RFC3339))
	return nil
}

// Stop cancels the pending timer. An in-flight sweep is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.active = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.nextFire = time.Time{}
	s.logger.Info("scheduler stopped")
}

// Reconfigure validates the new config synchronously and, when armed,
// re-arms with the next fire time recomputed from now.
func (s *Scheduler) Reconfigure(cfg model.ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	if s.active {
		s.armLocked()
		s.logger.Info("scheduler reconfigured", "next_fire", s.nextFire.Format(time.RFC3339))
	}
	return nil
}

// RunNow triggers a sweep through the same single-flight guard as the
// timer path, so a manual run can never race a scheduled one.
func (s *Scheduler) RunNow(ctx context.Context) (*model.RunReport, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSweepInFlight
	}
	defer s.inFlight.Store(false)

	report, err := s.runner.RunSweep(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()
	return report, nil
}

// NextFireInfo reports the armed state for the status endpoint.
func (s *Scheduler) NextFireInfo() FireInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := FireInfo{Active: s.active}
	if s.active {
		info.NextFire = s.nextFire
		info.Remaining = s.nextFire.Sub(s.now().In(s.loc))
	}
	return info
}

// LastReport returns the most recent sweep report, if any.
func (s *Scheduler) LastReport() *model.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// armLocked computes the next fire time from now and arms a single timer,
// stopping any previously armed one first: a re-arm during an in-flight
// sweep must never leave two timers live. Callers hold s.mu. Config was
// validated at Start/Reconfigure, so the computation cannot fail here.
func (s *Scheduler) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	next, err := NextFireTime(s.cfg, s.now().In(s.loc))
	if err != nil {
		// Unreachable with a validated config; log and disarm.
		s.logger.Error(err, "failed to compute next fire time")
		s.active = false
		return
	}
	s.nextFire = next
	s.timer = time.AfterFunc(next.Sub(s.now().In(s.loc)), s.fire)
}

func (s *Scheduler) fire() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("previous sweep still in flight, skipping this fire")
		s.metrics.SweepsSkipped.Inc()
		s.rearm()
		return
	}

	report, err := s.runner.RunSweep(context.Background())
	if err != nil {
		s.logger.Error(err, "scheduled sweep failed")
	}

	s.inFlight.Store(false)

	s.mu.Lock()
	if report != nil {
		s.lastReport = report
	}
	s.mu.Unlock()

	s.rearm()
}

func (s *Scheduler) rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.armLocked()
	}
}

// NextFireTime computes the next instant matching the schedule, strictly
// after "from". Daily: today at the configured time if still future, else
// tomorrow. Weekly: the nearest future day in the weekday set. Monthly:
// the configured day-of-month, clamped to each month's length.
func NextFireTime(cfg model.ScheduleConfig, from time.Time) (time.Time, error) {
	if err := cfg.Validate(); err != nil {
		return time.Time{}, err
	}

	loc := from.Location()
	at := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), cfg.Hour, cfg.Minute, 0, 0, loc)
	}

	switch cfg.Frequency {
	case model.FrequencyDaily:
		next := at(from)
		if !next.After(from) {
			next = at(from.AddDate(0, 0, 1))
		}
		return next, nil

	case model.FrequencyWeekly:
		set := cfg.WeekdaySet()
		for i := 0; i <= 7; i++ {
			next := at(from.AddDate(0, 0, i))
			if next.After(from) && set[next.Weekday()] {
				return next, nil
			}
		}
		return time.Time{}, errors.New("no weekday matched within a week")

	case model.FrequencyMonthly:
		next := monthlyAt(from.Year(), from.Month(), cfg, loc)
		if !next.After(from) {
			next = monthlyAt(from.Year(), from.Month()+1, cfg, loc)
		}
		return next, nil
	}

	return time.Time{}, errors.New("invalid frequency")
}

func monthlyAt(year int, month time.Month, cfg model.ScheduleConfig, loc *time.Location) time.Time {
	day := cfg.DayOfMonth
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, cfg.Hour, cfg.Minute, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/rmkec/leetcode-leaderboard/config"
	"github.com/rmkec/leetcode-leaderboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// WALL-CLOCK SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultWallClockRepeat is the repeat period of the default sync times.
const DefaultWallClockRepeat = 8 * time.Hour

// WallClockSchedule fires at fixed times of day. Each time starts a chain:
// the first trigger is the first occurrence of that time at or after Start,
// and the chain then repeats every Repeat (24h when zero). Next returns the
// earliest trigger over all chains.
type WallClockSchedule struct {
	Times    []timeutil.TimeOfDay
	Repeat   time.Duration
	Location *time.Location
	Start    time.Time
}

// NewWallClockSchedule creates a WallClockSchedule anchored at start.
func NewWallClockSchedule(times []timeutil.TimeOfDay, repeat time.Duration, loc *time.Location, start time.Time) *WallClockSchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &WallClockSchedule{
		Times:    times,
		Repeat:   repeat,
		Location: loc,
		Start:    start.In(loc),
	}
}

func (s *WallClockSchedule) period() time.Duration {
	if s.Repeat <= 0 {
		return 24 * time.Hour
	}
	return s.Repeat
}

// Next returns the first trigger strictly after t. It returns the zero time
// when no times are configured.
func (s *WallClockSchedule) Next(t time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	start := s.Start
	if start.IsZero() {
		start = t
	}
	start = start.In(loc)
	t = t.In(loc)
	period := s.period()

	var best time.Time
	for _, tod := range s.Times {
		first := tod.NextAtOrAfter(start)
		next := first
		if !first.After(t) {
			steps := t.Sub(first)/period + 1
			next = first.Add(steps * period)
		}
		if best.IsZero() || next.Before(best) {
			best = next
		}
	}
	return best
}

// String returns the string representation of the schedule.
func (s *WallClockSchedule) String() string {
	parts := make([]string, len(s.Times))
	for i, tod := range s.Times {
		parts[i] = tod.String()
	}
	loc := "UTC"
	if s.Location != nil {
		loc = s.Location.String()
	}
	return fmt.Sprintf("@at %s every %s (%s)", strings.Join(parts, ","), s.period(), loc)
}

// ══════════════════════════════════════════════════════════════════════════════
// FROM CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// NewSyncSchedule builds the reconciliation schedule selected by cfg.Sync.
// Wall-clock chains are anchored at now.
func NewSyncSchedule(cfg *config.Config, now time.Time) (Schedule, error) {
	switch cfg.Sync.Mode {
	case config.SyncModeInterval:
		if cfg.Sync.Interval <= 0 {
			return nil, fmt.Errorf("sync interval must be positive, got %s", cfg.Sync.Interval)
		}
		return NewIntervalSchedule(cfg.Sync.Interval), nil
	case config.SyncModeWallClock:
		times, err := timeutil.ParseTimesOfDay(cfg.Sync.Times)
		if err != nil {
			return nil, err
		}
		if len(times) == 0 {
			return nil, fmt.Errorf("no sync times configured")
		}
		return NewWallClockSchedule(times, cfg.Sync.Repeat, cfg.App.Location(), now), nil
	default:
		return nil, fmt.Errorf("unknown sync mode %q", cfg.Sync.Mode)
	}
}

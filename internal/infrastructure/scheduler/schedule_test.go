package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmkec/leetcode-leaderboard/config"
	"github.com/rmkec/leetcode-leaderboard/pkg/timeutil"
)

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(time.Hour)
	base := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Hour), s.Next(base))
	assert.Equal(t, "@every 1h0m0s", s.String())
}

func TestWallClockSchedule_DefaultTimes(t *testing.T) {
	times, err := timeutil.ParseTimesOfDay([]string{"00:00", "08:00", "20:00"})
	require.NoError(t, err)

	// Started at 09:30: the 20:00 chain fires first, then the 00:00 chain
	// on the next day. Every chain repeats 8h after its own first trigger.
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s := NewWallClockSchedule(times, DefaultWallClockRepeat, time.UTC, start)

	var got []time.Time
	cur := start
	for i := 0; i < 5; i++ {
		cur = s.Next(cur)
		got = append(got, cur)
	}

	assert.Equal(t, []time.Time{
		time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 4, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}, got)
}

func TestWallClockSchedule_NextIsStrictlyAfter(t *testing.T) {
	times := []timeutil.TimeOfDay{{Hour: 8}}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewWallClockSchedule(times, 0, time.UTC, start)

	trigger := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, trigger, s.Next(trigger.Add(-time.Second)))
	assert.Equal(t, trigger.Add(24*time.Hour), s.Next(trigger))
}

func TestWallClockSchedule_FirstTriggerAtStart(t *testing.T) {
	times := []timeutil.TimeOfDay{{Hour: 12}}
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewWallClockSchedule(times, time.Hour, time.UTC, start)

	// The chain's first trigger equals start, so the next one after start is
	// one repeat later.
	assert.Equal(t, start.Add(time.Hour), s.Next(start))
	assert.Equal(t, start, s.Next(start.Add(-time.Minute)))
}

func TestWallClockSchedule_FarFuture(t *testing.T) {
	times := []timeutil.TimeOfDay{{Hour: 8}}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewWallClockSchedule(times, 8*time.Hour, time.UTC, start)

	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 16, 0, 0, 0, time.UTC), s.Next(now))
}

func TestWallClockSchedule_Location(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	times := []timeutil.TimeOfDay{{Hour: 20}}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewWallClockSchedule(times, 0, loc, start)

	next := s.Next(start)
	assert.Equal(t, 20, next.In(loc).Hour())
	assert.Equal(t, time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC), next.UTC())
}

func TestWallClockSchedule_NoTimes(t *testing.T) {
	s := NewWallClockSchedule(nil, 0, nil, time.Now())
	assert.True(t, s.Next(time.Now()).IsZero())
}

func TestWallClockSchedule_String(t *testing.T) {
	times := []timeutil.TimeOfDay{{Hour: 0}, {Hour: 8}, {Hour: 20}}
	s := NewWallClockSchedule(times, DefaultWallClockRepeat, time.UTC, time.Now())
	assert.Equal(t, "@at 00:00,08:00,20:00 every 8h0m0s (UTC)", s.String())
}

func TestNewSyncSchedule(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	cfg := config.Default()
	cfg.Sync.Mode = config.SyncModeInterval
	cfg.Sync.Interval = 15 * time.Minute
	s, err := NewSyncSchedule(cfg, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), s.Next(now))

	cfg = config.Default()
	s, err = NewSyncSchedule(cfg, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC), s.Next(now))

	cfg.Sync.Times = []string{"25:00"}
	_, err = NewSyncSchedule(cfg, now)
	assert.Error(t, err)

	cfg.Sync.Mode = "cron"
	_, err = NewSyncSchedule(cfg, now)
	assert.Error(t, err)
}

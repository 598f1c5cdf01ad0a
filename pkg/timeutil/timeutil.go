// Package timeutil provides wall-clock helpers for schedules:
// "HH:MM" times of day, timezone loading and an injectable clock.
package timeutil

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Clock returns the current time. Production code passes time.Now.
type Clock func() time.Time

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimesOfDay parses a list of "HH:MM" values, sorted and deduplicated.
func ParseTimesOfDay(values []string) ([]TimeOfDay, error) {
	seen := make(map[TimeOfDay]struct{}, len(values))
	out := make([]TimeOfDay, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		tod, err := ParseTimeOfDay(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[tod]; dup {
			continue
		}
		seen[tod] = struct{}{}
		out = append(out, tod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	if t.Hour != other.Hour {
		return t.Hour < other.Hour
	}
	return t.Minute < other.Minute
}

// On returns the instant of t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// NextAtOrAfter returns the first occurrence of t at or after from.
func (t TimeOfDay) NextAtOrAfter(from time.Time) time.Time {
	candidate := t.On(from)
	if candidate.Before(from) {
		candidate = t.On(from.AddDate(0, 0, 1))
	}
	return candidate
}

// String formats t as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// LoadLocation loads an IANA zone name; an empty name means UTC and "Local"
// means the host zone.
func LoadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
